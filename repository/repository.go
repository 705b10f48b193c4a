package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-content-repository/entity"
	"github.com/goliatone/go-content-repository/internal/metrics"
)

// Repository is the data access contract shared by the concrete repositories
// and the caching decorator.
type Repository[T entity.Entity] interface {
	All(ctx context.Context, filters Filters) ([]T, error)
	GetByID(ctx context.Context, id int64, opts ...GetOption) (T, error)
	CreateOrUpdate(ctx context.Context, data map[string]any) (int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Operation names of the Repository contract.
const (
	OpAll            = "All"
	OpGetByID        = "GetByID"
	OpCreateOrUpdate = "CreateOrUpdate"
	OpDelete         = "Delete"
)

// Operations lists every operation of the contract.
var Operations = []string{OpAll, OpGetByID, OpCreateOrUpdate, OpDelete}

// IsWrite reports whether op mutates state.
func IsWrite(op string) bool {
	return op == OpCreateOrUpdate || op == OpDelete
}

// Filters narrows All. A nil or blank Search returns every active record.
type Filters struct {
	Search *string `json:"search,omitempty"`
}

// SearchTerm returns the trimmed search term, or "" when no search applies.
func (f Filters) SearchTerm() string {
	if f.Search == nil {
		return ""
	}
	return strings.TrimSpace(*f.Search)
}

// GetConfig is the resolved form of a GetByID option list.
type GetConfig struct {
	ActiveOnly bool
}

// GetOption configures a GetByID call.
type GetOption func(*GetConfig)

// ActiveOnly restricts GetByID to active records. It is on by default.
func ActiveOnly(active bool) GetOption {
	return func(c *GetConfig) {
		c.ActiveOnly = active
	}
}

// WithInactive makes inactive records visible to GetByID.
func WithInactive() GetOption {
	return ActiveOnly(false)
}

// ResolveGet applies opts over the defaults.
func ResolveGet(opts ...GetOption) GetConfig {
	cfg := GetConfig{ActiveOnly: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Invalidator drops cached reads carrying any of the given tags.
type Invalidator interface {
	FlushTags(ctx context.Context, tags []string) error
}

// Option configures a Base repository.
type Option func(*options)

type options struct {
	invalidator Invalidator
	tags        []string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	attempts    int
	now         func() time.Time
}

// WithInvalidator flushes tags on inv after every committed write.
func WithInvalidator(inv Invalidator, tags ...string) Option {
	return func(o *options) {
		o.invalidator = inv
		o.tags = append([]string(nil), tags...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithAttempts bounds how many times a transaction is tried when it fails
// with a transient concurrency error. Values below one are ignored.
func WithAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithClock overrides the clock used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
