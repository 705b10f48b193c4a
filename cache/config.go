package cache

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-content-repository/internal/cacheinfra"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Backend selects the store implementation: "memory" or "redis".
	Backend string

	// DefaultTTL applies to decorated reads. Disabled turns caching off and
	// Forever keeps entries until their tags are flushed.
	DefaultTTL time.Duration

	// StoreTimeout bounds every store call made by the decorator.
	StoreTimeout time.Duration

	Capacity           int
	NumShards          int
	Residency          time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration

	Redis RedisConfig
}

// RedisConfig mirrors the options of the Redis backed store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Prefix       string
	QueryTimeout time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	mem := cacheinfra.DefaultConfig()
	rds := cacheinfra.DefaultRedisConfig()
	return Config{
		Backend:            BackendMemory,
		DefaultTTL:         5 * time.Minute,
		StoreTimeout:       250 * time.Millisecond,
		Capacity:           mem.Capacity,
		NumShards:          mem.NumShards,
		Residency:          mem.Residency,
		EvictionPercentage: mem.EvictionPercentage,
		EvictionInterval:   mem.EvictionInterval,
		Redis: RedisConfig{
			Addr:         rds.Addr,
			Password:     rds.Password,
			DB:           rds.DB,
			Prefix:       rds.Prefix,
			QueryTimeout: rds.QueryTimeout,
		},
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
		validation.Field(&c.DefaultTTL, validation.Min(Forever)),
		validation.Field(&c.StoreTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
	if err != nil {
		return err
	}

	switch c.Backend {
	case BackendRedis:
		return c.redisConfig().Validate()
	default:
		return c.memoryConfig().Validate()
	}
}

// NewStore constructs the store selected by cfg.Backend.
func NewStore(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		store, err := cacheinfra.NewMemoryStore(cfg.memoryConfig())
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendRedis:
		store, err := cacheinfra.NewRedisStore(cfg.redisConfig())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

func (c Config) memoryConfig() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		Residency:          c.Residency,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func (c Config) redisConfig() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:         c.Redis.Addr,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		Prefix:       c.Redis.Prefix,
		QueryTimeout: c.Redis.QueryTimeout,
	}
}
