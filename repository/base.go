package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-repository/entity"
	"github.com/goliatone/go-content-repository/errcodes"
	"github.com/goliatone/go-content-repository/internal/logging"
	"github.com/goliatone/go-content-repository/internal/metrics"
	"github.com/goliatone/go-content-repository/mapper"
)

// DefaultAttempts bounds transaction retries on transient errors.
const DefaultAttempts = 3

// Order is one ORDER BY term on a root column.
type Order struct {
	Column string
	Desc   bool
}

// Spec describes how a Base reads and writes its entity.
type Spec struct {
	// Alias names the root table in read queries.
	Alias string
	// ActivityColumn is a nullable column whose non-null value marks an
	// active record. Empty means every record is active.
	ActivityColumn string
	// SearchColumns are matched case-insensitively by Filters.Search.
	SearchColumns []string
	OrderBy       []Order
	// CreateStamp is filled with the current UTC time on insert when the
	// payload does not mention it.
	CreateStamp string
	// Validate checks coerced write values. create is true for inserts.
	Validate func(values map[string]any, create bool) error
	// ReadOnly makes CreateOrUpdate and Delete fail with GENERIC_ERROR.
	ReadOnly bool
}

// Base implements Repository over one table joined with the relations its
// entity declares.
type Base[T entity.Entity] struct {
	db          bun.IDB
	newT        func() T
	proto       T
	spec        Spec
	relations   []entity.Relation
	invalidator Invalidator
	tags        []string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	attempts    int
	now         func() time.Time
}

var _ Repository[*entity.Article] = (*Base[*entity.Article])(nil)

// NewBase validates the entity metadata and spec and builds a repository.
func NewBase[T entity.Entity](db bun.IDB, newT func() T, spec Spec, opts ...Option) (*Base[T], error) {
	if db == nil {
		return nil, errcodes.New(errcodes.InvalidInstance, "db", "bun.IDB")
	}
	if newT == nil {
		return nil, errcodes.New(errcodes.InvalidInstance, "constructor", "func() entity.Entity")
	}

	proto := newT()
	if err := entity.Validate(proto); err != nil {
		return nil, err
	}
	if err := validateSpec(proto, spec); err != nil {
		return nil, err
	}

	o := options{attempts: DefaultAttempts, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if spec.Alias == "" {
		spec.Alias = proto.TableName()
	}

	return &Base[T]{
		db:          db,
		newT:        newT,
		proto:       proto,
		spec:        spec,
		relations:   entity.RelationsOf(proto),
		invalidator: o.invalidator,
		tags:        o.tags,
		logger:      logging.OrDiscard(o.logger).With(slog.String("table", proto.TableName())),
		metrics:     o.metrics,
		attempts:    o.attempts,
		now:         o.now,
	}, nil
}

func validateSpec(proto entity.Entity, spec Spec) error {
	name := entity.TypeName(proto)
	check := func(col string) error {
		if !entity.HasColumn(proto, col) {
			return errcodes.New(errcodes.InvalidInstance, name+"."+col, "a declared column")
		}
		return nil
	}

	if spec.ActivityColumn != "" {
		if err := check(spec.ActivityColumn); err != nil {
			return err
		}
	}
	if spec.CreateStamp != "" {
		if err := check(spec.CreateStamp); err != nil {
			return err
		}
	}
	for _, col := range spec.SearchColumns {
		if err := check(col); err != nil {
			return err
		}
	}
	for _, ord := range spec.OrderBy {
		if err := check(ord.Column); err != nil {
			return err
		}
	}
	return nil
}

// Table returns the backing table name.
func (b *Base[T]) Table() string {
	return b.proto.TableName()
}

// All returns the active records matching filters in the configured order.
func (b *Base[T]) All(ctx context.Context, filters Filters) ([]T, error) {
	q := b.selectQuery(b.db)
	q = b.whereActive(q)

	if term := filters.SearchTerm(); term != "" && len(b.spec.SearchColumns) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, col := range b.spec.SearchColumns {
				q = q.WhereOr("LOWER(?.?) LIKE ? ESCAPE '!'", bun.Ident(b.spec.Alias), bun.Ident(col), pattern)
			}
			return q
		})
	}

	for _, ord := range b.spec.OrderBy {
		dir := "ASC"
		if ord.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("?.? "+dir, bun.Ident(b.spec.Alias), bun.Ident(ord.Column))
	}

	records, err := b.scan(ctx, q)
	if err != nil {
		return nil, errcodes.Wrap(err, errcodes.ResourceNotFound, fmt.Sprintf("%s list (%s)", entity.TypeName(b.proto), errcodes.Message(err)))
	}
	return records, nil
}

// GetByID returns the record with id. Inactive records are hidden unless
// WithInactive is given.
func (b *Base[T]) GetByID(ctx context.Context, id int64, opts ...GetOption) (T, error) {
	if id <= 0 {
		var zero T
		return zero, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("id must be positive, got %d", id))
	}
	return b.getByID(ctx, b.db, id, ResolveGet(opts...).ActiveOnly)
}

func (b *Base[T]) getByID(ctx context.Context, db bun.IDB, id int64, activeOnly bool) (T, error) {
	var zero T

	q := b.selectQuery(db).
		Where("?.? = ?", bun.Ident(b.spec.Alias), bun.Ident("id"), id).
		Limit(1)
	if activeOnly {
		q = b.whereActive(q)
	}

	records, err := b.scan(ctx, q)
	if err == nil && len(records) == 0 {
		err = errNoRecord
	}
	if err != nil {
		return zero, errcodes.Wrap(err, errcodes.ResourceNotFound, fmt.Sprintf("%s %d (%s)", entity.TypeName(b.proto), id, errcodes.Message(err)))
	}
	return records[0], nil
}

// selectQuery builds the root select joined with every declared relation.
// Root columns keep their names, joined columns are aliased
// "<relation>.<column>" so rows can be un-flattened.
func (b *Base[T]) selectQuery(db bun.IDB) *bun.SelectQuery {
	alias := bun.Ident(b.spec.Alias)

	q := db.NewSelect().TableExpr("? AS ?", bun.Ident(b.proto.TableName()), alias)
	for _, col := range b.proto.Columns() {
		q = q.ColumnExpr("?.?", alias, bun.Ident(col))
	}

	for _, rel := range b.relations {
		relAlias := bun.Ident(rel.Name)
		q = q.Join("JOIN ? AS ? ON ?.? = ?.?",
			bun.Ident(rel.Table), relAlias,
			relAlias, bun.Ident(rel.ForeignKey),
			alias, bun.Ident(rel.LocalKey),
		)
		for _, col := range rel.Columns {
			q = q.ColumnExpr("?.? AS ?", relAlias, bun.Ident(col), bun.Name(rel.Name+mapper.PathSeparator+col))
		}
	}
	return q
}

func (b *Base[T]) whereActive(q *bun.SelectQuery) *bun.SelectQuery {
	if b.spec.ActivityColumn == "" {
		return q
	}
	return q.Where("?.? IS NOT NULL", bun.Ident(b.spec.Alias), bun.Ident(b.spec.ActivityColumn))
}

func (b *Base[T]) scan(ctx context.Context, q *bun.SelectQuery) ([]T, error) {
	var rows []map[string]any
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return mapper.MapRows(rows, b.newT)
}

func (b *Base[T]) isActive(record T) bool {
	if b.spec.ActivityColumn == "" {
		return false
	}
	return record.Values()[b.spec.ActivityColumn] != nil
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
