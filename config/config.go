// Package config loads the process configuration: database connection, cache
// backend and logging. Values come from defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-content-repository/cache"
	"github.com/goliatone/go-content-repository/internal/database"
	"github.com/goliatone/go-content-repository/internal/logging"
)

// Environment variables read by ApplyEnv.
const (
	EnvDBDriver     = "CONTENT_DB_DRIVER"
	EnvDBDSN        = "CONTENT_DB_DSN"
	EnvCacheBackend = "CONTENT_CACHE_BACKEND"
	EnvCacheTTL     = "CONTENT_CACHE_TTL"
	EnvRedisAddr    = "CONTENT_REDIS_ADDR"
	EnvLogLevel     = "LOG_LEVEL"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type CacheConfig struct {
	Backend            string      `yaml:"backend"`
	TTL                Duration    `yaml:"ttl"`
	StoreTimeout       Duration    `yaml:"store_timeout"`
	Capacity           int         `yaml:"capacity"`
	Shards             int         `yaml:"shards"`
	Residency          Duration    `yaml:"residency"`
	EvictionPercentage int         `yaml:"eviction_percentage"`
	EvictionInterval   Duration    `yaml:"eviction_interval"`
	Redis              RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr         string   `yaml:"addr"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	Prefix       string   `yaml:"prefix"`
	QueryTimeout Duration `yaml:"query_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden: a local
// SQLite file, the in-memory cache and JSON logs at info level.
func Default() Config {
	cc := cache.DefaultConfig()
	return Config{
		Database: DatabaseConfig{
			Driver: database.DriverSQLite,
			DSN:    "file:content.db?_busy_timeout=5000&_foreign_keys=on",
		},
		Cache: CacheConfig{
			Backend:            cc.Backend,
			TTL:                Duration(cc.DefaultTTL),
			StoreTimeout:       Duration(cc.StoreTimeout),
			Capacity:           cc.Capacity,
			Shards:             cc.NumShards,
			Residency:          Duration(cc.Residency),
			EvictionPercentage: cc.EvictionPercentage,
			EvictionInterval:   Duration(cc.EvictionInterval),
			Redis: RedisConfig{
				Addr:         cc.Redis.Addr,
				Password:     cc.Redis.Password,
				DB:           cc.Redis.DB,
				Prefix:       cc.Redis.Prefix,
				QueryTimeout: Duration(cc.Redis.QueryTimeout),
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(nil); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables. A nil lookup uses
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvDBDriver); ok {
		c.Database.Driver = v
	}
	if v, ok := get(EnvDBDSN); ok {
		c.Database.DSN = v
	}
	if v, ok := get(EnvCacheBackend); ok {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v, ok := get(EnvCacheTTL); ok {
		ttl, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvCacheTTL, err)
		}
		c.Cache.TTL = Duration(ttl)
	}
	if v, ok := get(EnvRedisAddr); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks every section; cache settings are checked by cache.Config.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required,
			validation.In("sqlite", "sqlite3", "postgres", "postgresql", "pg")),
		validation.Field(&c.Database.DSN, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("config: database: %w", err)
	}

	err = validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Log.Format, validation.In(logging.FormatJSON, logging.FormatText)),
	)
	if err != nil {
		return fmt.Errorf("config: log: %w", err)
	}

	if err := c.Cache.ToCache().Validate(); err != nil {
		return fmt.Errorf("config: cache: %w", err)
	}
	return nil
}

// ToCache converts the cache section to cache.Config.
func (c CacheConfig) ToCache() cache.Config {
	return cache.Config{
		Backend:            c.Backend,
		DefaultTTL:         time.Duration(c.TTL),
		StoreTimeout:       time.Duration(c.StoreTimeout),
		Capacity:           c.Capacity,
		NumShards:          c.Shards,
		Residency:          time.Duration(c.Residency),
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   time.Duration(c.EvictionInterval),
		Redis: cache.RedisConfig{
			Addr:         c.Redis.Addr,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			Prefix:       c.Redis.Prefix,
			QueryTimeout: time.Duration(c.Redis.QueryTimeout),
		},
	}
}

// Duration is a time.Duration read from text. It accepts day and week units
// ("1d12h", "2w") as well as "forever" and "off" for the cache TTL
// sentinels.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	switch time.Duration(d) {
	case cache.Disabled:
		return "off"
	case cache.Forever:
		return "forever"
	}
	return str2duration.String(time.Duration(d))
}

// ParseDuration parses s with day and week units. Bare integers are read
// as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "forever", "never":
		return cache.Forever, nil
	case "off", "disabled", "none", "0":
		return cache.Disabled, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
