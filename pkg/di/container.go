package di

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-repository/cache"
	"github.com/goliatone/go-content-repository/config"
	"github.com/goliatone/go-content-repository/entity"
	"github.com/goliatone/go-content-repository/internal/database"
	"github.com/goliatone/go-content-repository/internal/logging"
	"github.com/goliatone/go-content-repository/internal/metrics"
	"github.com/goliatone/go-content-repository/repository"
	"github.com/goliatone/go-content-repository/repositorycache"
)

// Tags shared by a repository and its decorator. Writes flush the tag, which
// drops every cached read of the table.
const (
	ArticleTag = "articles"
	UserTag    = "users"
)

// Container wires the shared store, key serializer, logger, metrics and
// database handle into cached Article and User repositories.
type Container struct {
	config     config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	store      cache.Store
	serializer cache.KeySerializer
	db         *bun.DB

	articles *repositorycache.CachedRepository[*entity.Article]
	users    *repositorycache.CachedRepository[*entity.User]

	closers []func() error
}

// Option customises NewContainer.
type Option func(*options)

type options struct {
	registerer   prometheus.Registerer
	logger       *slog.Logger
	logWriter    io.Writer
	db           *bun.DB
	store        cache.Store
	createSchema bool
}

// WithRegisterer registers the metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger replaces the logger built from the log section.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogWriter sets where the configured logger writes. Defaults to stdout.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithDB uses an already opened database. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// WithStore uses an existing cache store. The container does not close it.
func WithStore(store cache.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSchema creates the tables on startup when they do not exist.
func WithSchema() Option {
	return func(o *options) {
		o.createSchema = true
	}
}

// NewContainer builds every component from cfg. Resources it opens itself
// are released by Close.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:     cfg,
		serializer: cache.NewDefaultKeySerializer(),
		metrics:    metrics.New(o.registerer),
	}

	c.logger = o.logger
	if c.logger == nil {
		c.logger = logging.New(cfg.Log.Level, cfg.Log.Format, o.logWriter)
	}

	if err := c.build(ctx, o); err != nil {
		if cerr := c.Close(); cerr != nil {
			c.logger.Warn("container cleanup failed", slog.Any("error", cerr))
		}
		return nil, err
	}

	c.logger.Info("container ready",
		slog.String("driver", cfg.Database.Driver),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Duration("cache_ttl", time.Duration(cfg.Cache.TTL)),
	)
	return c, nil
}

// NewContainerWithDefaults builds a container from config.Default with the
// schema created.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), append([]Option{WithSchema()}, opts...)...)
}

func (c *Container) build(ctx context.Context, o options) error {
	c.store = o.store
	if c.store == nil {
		store, err := cache.NewStore(c.config.Cache.ToCache())
		if err != nil {
			return err
		}
		c.store = store
		if closer, ok := store.(io.Closer); ok {
			c.closers = append(c.closers, closer.Close)
		}
	}

	c.db = o.db
	if c.db == nil {
		db, err := database.Open(c.config.Database.Driver, c.config.Database.DSN)
		if err != nil {
			return err
		}
		c.db = db
		c.closers = append(c.closers, db.Close)
	}

	if o.createSchema {
		if err := database.CreateSchema(ctx, c.db); err != nil {
			return err
		}
	}

	articleBase, err := repository.NewArticleRepository(c.db, c.repositoryOptions(ArticleTag)...)
	if err != nil {
		return err
	}
	c.articles, err = repositorycache.New[*entity.Article](articleBase, c.store, c.serializer, c.cacheOptions(ArticleTag)...)
	if err != nil {
		return err
	}

	userBase, err := repository.NewUserRepository(c.db, c.repositoryOptions(UserTag)...)
	if err != nil {
		return err
	}
	c.users, err = repositorycache.New[*entity.User](userBase, c.store, c.serializer, c.cacheOptions(UserTag)...)
	return err
}

func (c *Container) repositoryOptions(tag string) []repository.Option {
	return []repository.Option{
		repository.WithInvalidator(c.store, tag),
		repository.WithLogger(c.logger),
		repository.WithMetrics(c.metrics),
	}
}

func (c *Container) cacheOptions(tag string) []repositorycache.Option {
	return []repositorycache.Option{
		repositorycache.WithTags(tag),
		repositorycache.WithTTL(time.Duration(c.config.Cache.TTL)),
		repositorycache.WithStoreTimeout(time.Duration(c.config.Cache.StoreTimeout)),
		repositorycache.WithLogger(c.logger),
		repositorycache.WithMetrics(c.metrics),
	}
}

// Articles returns the cached article repository.
func (c *Container) Articles() *repositorycache.CachedRepository[*entity.Article] {
	return c.articles
}

// Users returns the cached, read-only user repository.
func (c *Container) Users() *repositorycache.CachedRepository[*entity.User] {
	return c.users
}

// Store returns the shared cache store.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeySerializer returns the serializer shared by every decorator.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.serializer
}

func (c *Container) DB() *bun.DB {
	return c.db
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}

// Close releases the store and database opened by the container, in reverse
// order. It is safe to call more than once.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
