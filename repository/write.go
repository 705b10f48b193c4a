package repository

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/goliatone/go-content-repository/entity"
	"github.com/goliatone/go-content-repository/errcodes"
	"github.com/goliatone/go-content-repository/mapper"
)

var (
	errNoRecord      = goerrors.New("no matching record", goerrors.CategoryNotFound)
	errCannotDelete  = goerrors.New("cannot delete", goerrors.CategoryOperation)
	errNothingUpdate = goerrors.New("cannot update: no row affected", goerrors.CategoryOperation)
)

type writeOutcome struct {
	id      int64
	changed bool
}

// CreateOrUpdate inserts data when it carries no id (or id 0) and otherwise
// updates only the columns whose value differs from the stored record. It
// returns the id of the affected record.
func (b *Base[T]) CreateOrUpdate(ctx context.Context, data map[string]any) (int64, error) {
	if b.spec.ReadOnly {
		return 0, errcodes.New(errcodes.GenericError)
	}

	id, values, err := b.prepare(data)
	if err != nil {
		return 0, err
	}

	out, err := runInTx(ctx, b, OpCreateOrUpdate, func(ctx context.Context, tx bun.Tx) txResult[writeOutcome] {
		if id > 0 {
			return b.update(ctx, tx, id, values)
		}
		return b.insert(ctx, tx, data, values)
	})
	if err != nil {
		return 0, errcodes.Wrap(err, errcodes.GenericSQLError)
	}

	if out.changed {
		b.invalidate(ctx, OpCreateOrUpdate)
	}
	return out.id, nil
}

// Delete soft deletes an active record by clearing its activity column and
// hard deletes an inactive one.
func (b *Base[T]) Delete(ctx context.Context, id int64) (bool, error) {
	if b.spec.ReadOnly {
		return false, errcodes.New(errcodes.GenericError)
	}
	if id <= 0 {
		return false, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("id must be positive, got %d", id))
	}

	_, err := runInTx(ctx, b, OpDelete, func(ctx context.Context, tx bun.Tx) txResult[bool] {
		current, err := b.getByID(ctx, tx, id, false)
		if err != nil {
			return rollback[bool](err)
		}

		var affected int64
		if b.isActive(current) {
			affected, err = b.exec(tx.NewUpdate().
				Model(&map[string]any{b.spec.ActivityColumn: nil}).
				TableExpr("?", bun.Ident(b.Table())).
				Where("? = ?", bun.Ident("id"), id).
				Exec(ctx))
		} else {
			affected, err = b.exec(tx.NewDelete().
				TableExpr("?", bun.Ident(b.Table())).
				Where("? = ?", bun.Ident("id"), id).
				Exec(ctx))
		}
		if err != nil {
			return rollback[bool](err)
		}
		if affected == 0 {
			return rollback[bool](errCannotDelete)
		}
		return commit(true)
	})
	if err != nil {
		if errcodes.Is(err, errcodes.ResourceNotFound) {
			return false, err
		}
		return false, errcodes.Wrap(err, errcodes.GenericSQLError)
	}

	b.invalidate(ctx, OpDelete)
	return true, nil
}

func (b *Base[T]) update(ctx context.Context, tx bun.Tx, id int64, values map[string]any) txResult[writeOutcome] {
	current, err := b.getByID(ctx, tx, id, false)
	if err != nil {
		return rollback[writeOutcome](err)
	}

	plain := current.Values()
	diff := make(map[string]any, len(values))
	for col, v := range values {
		if !sameValue(plain[col], v) {
			diff[col] = v
		}
	}
	if len(diff) == 0 {
		b.logger.Debug("update skipped, nothing changed", slog.Int64("id", id))
		return commit(writeOutcome{id: id})
	}

	affected, err := b.exec(tx.NewUpdate().
		Model(&diff).
		TableExpr("?", bun.Ident(b.Table())).
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx))
	if err != nil {
		return rollback[writeOutcome](err)
	}
	if affected == 0 {
		return rollback[writeOutcome](errNothingUpdate)
	}
	return commit(writeOutcome{id: id, changed: true})
}

func (b *Base[T]) insert(ctx context.Context, tx bun.Tx, data, values map[string]any) txResult[writeOutcome] {
	row := maps.Clone(values)
	if col := b.spec.CreateStamp; col != "" {
		if _, given := data[col]; !given {
			row[col] = b.now().UTC().Truncate(time.Microsecond)
		}
	}

	q := tx.NewInsert().Model(&row).TableExpr("?", bun.Ident(b.Table()))

	var id int64
	if tx.Dialect().Features().Has(feature.InsertReturning) {
		if err := q.Returning("?", bun.Ident("id")).Scan(ctx, &id); err != nil {
			return rollback[writeOutcome](err)
		}
	} else {
		res, err := q.Exec(ctx)
		if err != nil {
			return rollback[writeOutcome](err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return rollback[writeOutcome](err)
		}
	}
	return commit(writeOutcome{id: id, changed: true})
}

func (b *Base[T]) exec(res interface{ RowsAffected() (int64, error) }, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// prepare checks the payload shape and coerces every value to the kind of
// its field. It returns the record id, zero for inserts.
func (b *Base[T]) prepare(data map[string]any) (int64, map[string]any, error) {
	var (
		id      int64
		unknown []string
		values  = make(map[string]any, len(data))
	)

	for _, key := range slices.Sorted(maps.Keys(data)) {
		raw := data[key]

		if key == "id" {
			parsed, err := parseID(raw)
			if err != nil {
				return 0, nil, err
			}
			id = parsed
			continue
		}

		field, ok := entity.FieldByName(b.proto, key)
		if !ok || field.Kind == entity.KindEntity || !entity.HasColumn(b.proto, key) {
			unknown = append(unknown, key)
			continue
		}

		v, err := mapper.Coerce(field.Kind, raw)
		if goerrors.Is(err, mapper.ErrNilValue) {
			v, err = nil, nil
		}
		if err != nil {
			return 0, nil, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("%s: %v", key, err))
		}
		if v == nil && !field.Nullable {
			return 0, nil, errcodes.New(errcodes.InvalidArgument, key+" cannot be null")
		}
		// columns keep microseconds, so finer input would never compare equal
		if t, isTime := v.(time.Time); isTime {
			v = t.UTC().Truncate(time.Microsecond)
		}
		values[key] = v
	}

	if len(unknown) > 0 {
		return 0, nil, errcodes.New(errcodes.InvalidArgument, "unknown column(s) "+strings.Join(unknown, ", "))
	}

	if b.spec.Validate != nil {
		if err := b.spec.Validate(values, id == 0); err != nil {
			return 0, nil, err
		}
	}
	return id, values, nil
}

func parseID(raw any) (int64, error) {
	if raw == nil {
		return 0, nil
	}
	switch raw.(type) {
	case string, []byte:
		return 0, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("id must be an integer, got %T", raw))
	}

	id, err := mapper.CoerceInt(raw)
	if err != nil {
		return 0, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("id must be an integer, got %v", raw))
	}
	if id < 0 {
		return 0, errcodes.New(errcodes.InvalidArgument, fmt.Sprintf("id must not be negative, got %d", id))
	}
	return id, nil
}

// sameValue compares coerced column values. Times compare by instant.
func sameValue(stored, incoming any) bool {
	st, sok := stored.(time.Time)
	it, iok := incoming.(time.Time)
	if sok && iok {
		return st.Equal(it)
	}
	if sok != iok {
		return false
	}
	return stored == incoming
}

// invalidate flushes the repository tags after a committed write. Failures
// are logged and counted; the write has already succeeded.
func (b *Base[T]) invalidate(ctx context.Context, op string) {
	if b.invalidator == nil || len(b.tags) == 0 {
		return
	}
	err := b.invalidator.FlushTags(ctx, b.tags)
	b.metrics.Invalidation(b.Table(), err)
	if err != nil {
		b.logger.Warn("cache invalidation failed",
			slog.String("op", op),
			slog.Any("tags", b.tags),
			slog.Any("error", err),
		)
	}
}
