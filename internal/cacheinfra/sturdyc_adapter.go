package cacheinfra

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
	"github.com/vmihailenco/msgpack/v5"
)

// Config holds the configuration for the in-process store.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// Residency bounds how long any entry may stay in memory, including
	// entries stored without expiry. Must be greater than 0.
	Residency time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		Residency:          24 * time.Hour,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, Residency and EvictionPercentage go to sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.Residency <= 0 {
		return &ConfigError{Field: "Residency", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// memoryEntry is what the sturdyc client holds. Tag versions are captured at
// Put time; a flush bumps the version, which hides every entry stored before
// it even when the flush raced with the Put.
type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
	tags      map[string]uint64
}

// tagMembers indexes the keys stored under one tag. Keys that left the
// client through expiry or eviction are pruned once the set grows past
// limit; limit then doubles from the surviving size, never below capacity.
type tagMembers struct {
	keys  *xsync.MapOf[string, struct{}]
	limit atomic.Int64
}

// MemoryStore is an in-process tagged store backed by sturdyc. Values are
// stored as msgpack snapshots so callers never share memory with the cache.
type MemoryStore struct {
	client   *sturdyc.Client[memoryEntry]
	versions *xsync.MapOf[string, uint64]
	members  *xsync.MapOf[string, *tagMembers]
	capacity int
	now      func() time.Time
}

// NewMemoryStore validates cfg and builds the sturdyc client.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[memoryEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.Residency,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &MemoryStore{
		client:   client,
		versions: xsync.NewMapOf[string, uint64](),
		members:  xsync.NewMapOf[string, *tagMembers](),
		capacity: cfg.Capacity,
		now:      time.Now,
	}, nil
}

// Get returns the encoded value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	entry, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}

	if !s.live(entry) {
		s.client.Delete(key)
		s.unindex(key, entry.tags)
		return nil, false, nil
	}

	return entry.payload, true, nil
}

// live reports whether entry is unexpired and no tag it was stored under has
// been flushed since.
func (s *MemoryStore) live(entry memoryEntry) bool {
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		return false
	}
	for tag, version := range entry.tags {
		current, _ := s.versions.Load(tag)
		if current != version {
			return false
		}
	}
	return true
}

// Put stores value under key. A zero ttl skips the write, a negative ttl
// stores the value until it is flushed or evicted.
func (s *MemoryStore) Put(ctx context.Context, key string, value any, ttl time.Duration, tags []string) error {
	if ttl == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}

	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	if len(tags) > 0 {
		entry.tags = make(map[string]uint64, len(tags))
		for _, tag := range tags {
			version, _ := s.versions.Load(tag)
			entry.tags[tag] = version
		}
	}

	if previous, ok := s.client.Get(key); ok {
		stale := make(map[string]uint64, len(previous.tags))
		for tag, version := range previous.tags {
			if _, kept := entry.tags[tag]; !kept {
				stale[tag] = version
			}
		}
		s.unindex(key, stale)
	}
	s.client.Set(key, entry)

	for tag := range entry.tags {
		set, _ := s.members.LoadOrCompute(tag, func() *tagMembers {
			m := &tagMembers{keys: xsync.NewMapOf[string, struct{}]()}
			m.limit.Store(int64(s.capacity))
			return m
		})
		set.keys.Store(key, struct{}{})
		if int64(set.keys.Size()) > set.limit.Load() {
			s.prune(set)
		}
	}
	return nil
}

// Forget removes a single entry.
func (s *MemoryStore) Forget(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry, ok := s.client.Get(key); ok {
		s.unindex(key, entry.tags)
	}
	s.client.Delete(key)
	return nil
}

// unindex drops key from the member sets of tags.
func (s *MemoryStore) unindex(key string, tags map[string]uint64) {
	for tag := range tags {
		if set, ok := s.members.Load(tag); ok {
			set.keys.Delete(key)
		}
	}
}

// prune drops members that expired, were flushed or were evicted by sturdyc.
func (s *MemoryStore) prune(set *tagMembers) {
	set.keys.Range(func(key string, _ struct{}) bool {
		if entry, ok := s.client.Get(key); !ok || !s.live(entry) {
			set.keys.Delete(key)
		}
		return true
	})
	set.limit.Store(max(int64(s.capacity), 2*int64(set.keys.Size())))
}

// FlushTags removes every entry stored with any of tags.
func (s *MemoryStore) FlushTags(ctx context.Context, tags []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, tag := range tags {
		s.versions.Compute(tag, func(old uint64, _ bool) (uint64, bool) {
			return old + 1, false
		})

		set, ok := s.members.LoadAndDelete(tag)
		if !ok {
			continue
		}
		set.keys.Range(func(key string, _ struct{}) bool {
			s.client.Delete(key)
			return true
		})
	}
	return nil
}

// indexed reports how many keys the tag index holds for tag.
func (s *MemoryStore) indexed(tag string) int {
	set, ok := s.members.Load(tag)
	if !ok {
		return 0
	}
	return set.keys.Size()
}

// Len reports how many entries the sturdyc client currently holds.
func (s *MemoryStore) Len() int {
	return s.client.Size()
}
