package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisConfig configures the shared Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key written by the store.
	Prefix string
	// QueryTimeout bounds each round trip.
	QueryTimeout time.Duration
}

// DefaultRedisConfig returns a RedisConfig pointing at a local server.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "127.0.0.1:6379",
		Prefix:       "content",
		QueryTimeout: 250 * time.Millisecond,
	}
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "must not be empty"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "DB", Message: "must be non-negative"}
	}
	if c.QueryTimeout <= 0 {
		return &ConfigError{Field: "QueryTimeout", Message: "must be greater than 0"}
	}
	return nil
}

// Every entry key has a companion set, entry..":tags", holding the tag sets
// that reference it. Forget and overwrites use it to leave no stale members.

// putScript writes KEYS[1] with payload ARGV[1] and ttl ARGV[2] milliseconds
// (0 keeps it without expiry) and registers it in the tag sets KEYS[2..].
// Tag sets live at least as long as their longest entry and drop a few
// members that no longer exist on every write.
var putScript = redis.NewScript(`
local entry = KEYS[1]
local back = entry .. ':tags'
local ttl = tonumber(ARGV[2])

for _, old in ipairs(redis.call('SMEMBERS', back)) do
	redis.call('SREM', old, entry)
end
redis.call('DEL', back)

if ttl > 0 then
	redis.call('SET', entry, ARGV[1], 'PX', ttl)
else
	redis.call('SET', entry, ARGV[1])
end

for i = 2, #KEYS do
	local tag = KEYS[i]
	local current = redis.call('PTTL', tag)
	for _, member in ipairs(redis.call('SRANDMEMBER', tag, 8)) do
		if redis.call('EXISTS', member) == 0 then
			redis.call('SREM', tag, member)
		end
	end
	redis.call('SADD', tag, entry)
	redis.call('SADD', back, tag)
	if ttl <= 0 then
		redis.call('PERSIST', tag)
	elseif current == -2 or (current >= 0 and current < ttl) then
		redis.call('PEXPIRE', tag, ttl)
	end
end

if #KEYS > 1 and ttl > 0 then
	redis.call('PEXPIRE', back, ttl)
end
return 1
`)

// forgetScript removes KEYS[1] and its membership in every tag set.
var forgetScript = redis.NewScript(`
local entry = KEYS[1]
local back = entry .. ':tags'
for _, tag in ipairs(redis.call('SMEMBERS', back)) do
	redis.call('SREM', tag, entry)
end
redis.call('DEL', entry, back)
return 1
`)

// flushScript deletes the members of every tag set passed in KEYS and then
// the sets themselves, in one atomic step.
var flushScript = redis.NewScript(`
for _, tag in ipairs(KEYS) do
	local members = redis.call('SMEMBERS', tag)
	for _, key in ipairs(members) do
		redis.call('DEL', key, key .. ':tags')
	end
	redis.call('DEL', tag)
end
return 1
`)

// RedisStore keeps msgpack snapshots in Redis with native expiry and tracks
// tag membership in Redis sets.
// The caller owns the client lifecycle when it is injected with
// NewRedisStoreWithClient.
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedisStore validates cfg and dials a new client.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, cfg: cfg}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig) (*RedisStore, error) {
	if client == nil {
		return nil, &ConfigError{Field: "client", Message: "cannot be nil"}
	}
	if cfg.QueryTimeout <= 0 {
		return nil, &ConfigError{Field: "QueryTimeout", Message: "must be greater than 0"}
	}
	return &RedisStore{client: client, cfg: cfg}, nil
}

func (s *RedisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.QueryTimeout)
}

func (s *RedisStore) entryKey(key string) string {
	if s.cfg.Prefix == "" {
		return "entry:" + key
	}
	return s.cfg.Prefix + ":entry:" + key
}

func (s *RedisStore) tagKey(tag string) string {
	if s.cfg.Prefix == "" {
		return "tag:" + tag
	}
	return s.cfg.Prefix + ":tag:" + tag
}

// Get returns the encoded value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	data, err := s.client.Get(qctx, s.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores value under key and registers it with every tag in one script
// call. A zero ttl skips the write, a negative ttl stores without expiry.
func (s *RedisStore) Put(ctx context.Context, key string, value any, ttl time.Duration, tags []string) error {
	if ttl == 0 {
		return nil
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}

	var millis int64
	if ttl > 0 {
		millis = max(ttl.Milliseconds(), 1)
	}

	keys := make([]string, 0, len(tags)+1)
	keys = append(keys, s.entryKey(key))
	for _, tag := range tags {
		keys = append(keys, s.tagKey(tag))
	}

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return putScript.Run(qctx, s.client, keys, data, millis).Err()
}

// Forget removes a single entry and its tag memberships.
func (s *RedisStore) Forget(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return forgetScript.Run(qctx, s.client, []string{s.entryKey(key)}).Err()
}

// FlushTags removes every entry stored with any of tags.
func (s *RedisStore) FlushTags(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = s.tagKey(tag)
	}

	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return flushScript.Run(qctx, s.client, keys).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
