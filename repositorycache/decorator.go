package repositorycache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-content-repository/cache"
	"github.com/goliatone/go-content-repository/entity"
	"github.com/goliatone/go-content-repository/errcodes"
	"github.com/goliatone/go-content-repository/internal/logging"
	"github.com/goliatone/go-content-repository/internal/metrics"
	"github.com/goliatone/go-content-repository/repository"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[*entity.Article] = (*CachedRepository[*entity.Article])(nil)

// DefaultStoreTimeout bounds each store call when WithStoreTimeout is not given.
const DefaultStoreTimeout = 250 * time.Millisecond

// DefaultCacheable is the allow-list used when WithCacheable is not given.
func DefaultCacheable() map[string]bool {
	return map[string]bool{
		repository.OpAll:     true,
		repository.OpGetByID: true,
	}
}

// CachedRepository decorates a base repository with cache-aside reads.
type CachedRepository[T entity.Entity] struct {
	base       repository.Repository[T]
	store      cache.Store
	serializer cache.KeySerializer
	namespace  string
	tags       []string
	ttl        time.Duration
	timeout    time.Duration
	cacheable  map[string]bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a CachedRepository.
type Option func(*settings)

type settings struct {
	tags      []string
	ttl       time.Duration
	cacheable map[string]bool
	namespace string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// WithTags sets the tags every cached read is stored under. Writers flush
// these tags to invalidate the decorated reads.
func WithTags(tags ...string) Option {
	return func(s *settings) {
		s.tags = append([]string(nil), tags...)
	}
}

// WithTTL sets the lifetime of cached reads. cache.Disabled turns caching
// off and cache.Forever keeps entries until their tags are flushed.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.ttl = ttl
	}
}

// WithCacheable replaces the allow-list of cached operations. Keys must name
// operations of repository.Repository; write operations cannot be enabled.
func WithCacheable(ops map[string]bool) Option {
	return func(s *settings) {
		s.cacheable = ops
	}
}

// WithNamespace overrides the key namespace, which defaults to the snake
// case entity type name.
func WithNamespace(ns string) Option {
	return func(s *settings) {
		s.namespace = ns
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// New creates a new CachedRepository that wraps the base repository with
// caching. A nil serializer uses cache.NewDefaultKeySerializer.
func New[T entity.Entity](base repository.Repository[T], store cache.Store, serializer cache.KeySerializer, opts ...Option) (*CachedRepository[T], error) {
	if base == nil {
		return nil, errcodes.New(errcodes.InvalidInstance, "base", "repository.Repository")
	}
	if store == nil {
		return nil, errcodes.New(errcodes.InvalidInstance, "store", "cache.Store")
	}
	if serializer == nil {
		serializer = cache.NewDefaultKeySerializer()
	}

	s := settings{
		ttl:       5 * time.Minute,
		timeout:   DefaultStoreTimeout,
		cacheable: DefaultCacheable(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	cacheable, err := resolveCacheable(s.cacheable)
	if err != nil {
		return nil, err
	}

	ns := s.namespace
	if ns == "" {
		ns = namespaceOf[T]()
	}
	tags := dedupeStrings(s.tags)
	if len(tags) == 0 {
		tags = []string{ns}
	}

	return &CachedRepository[T]{
		base:       base,
		store:      store,
		serializer: serializer,
		namespace:  ns,
		tags:       tags,
		ttl:        s.ttl,
		timeout:    s.timeout,
		cacheable:  cacheable,
		logger:     logging.OrDiscard(s.logger).With(slog.String("namespace", ns)),
		metrics:    s.metrics,
	}, nil
}

// resolveCacheable checks an allow-list against the repository contract.
func resolveCacheable(ops map[string]bool) (map[string]bool, error) {
	known := make(map[string]bool, len(repository.Operations))
	for _, op := range repository.Operations {
		known[op] = true
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	var unknown []string
	resolved := make(map[string]bool, len(ops))
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		if ops[name] && repository.IsWrite(name) {
			return nil, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("%s writes and cannot be cached", name))
		}
		resolved[name] = ops[name]
	}
	if len(unknown) > 0 {
		return nil, errcodes.New(errcodes.InvalidArgument, "unknown operation(s) "+strings.Join(unknown, ", "))
	}
	return resolved, nil
}

// Base returns the decorated repository.
func (c *CachedRepository[T]) Base() repository.Repository[T] {
	return c.base
}

func (c *CachedRepository[T]) Namespace() string {
	return c.namespace
}

// Tags returns the tags cached reads are stored under.
func (c *CachedRepository[T]) Tags() []string {
	return append([]string(nil), c.tags...)
}

// Cacheable reports whether op is served through the cache.
func (c *CachedRepository[T]) Cacheable(op string) bool {
	return c.cacheable[op] && c.ttl != cache.Disabled
}

// All returns active records, cached by normalized search term.
func (c *CachedRepository[T]) All(ctx context.Context, filters repository.Filters) ([]T, error) {
	return Intercept(ctx, c, repository.OpAll, func(ctx context.Context) ([]T, error) {
		return c.base.All(ctx, filters)
	}, filters.SearchTerm())
}

// GetByID returns one record, cached by id and resolved visibility.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id int64, opts ...repository.GetOption) (T, error) {
	cfg := repository.ResolveGet(opts...)
	return Intercept(ctx, c, repository.OpGetByID, func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id, repository.ActiveOnly(cfg.ActiveOnly))
	}, id, cfg.ActiveOnly)
}

// CreateOrUpdate passes through to the base repository, which invalidates
// the shared tags once its transaction commits.
func (c *CachedRepository[T]) CreateOrUpdate(ctx context.Context, data map[string]any) (int64, error) {
	return c.base.CreateOrUpdate(ctx, data)
}

// Delete passes through to the base repository.
func (c *CachedRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	return c.base.Delete(ctx, id)
}
