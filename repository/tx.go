package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-repository/entity"
)

// txResult is what a transaction body hands back to the runner: either a
// value to commit or the error that rolls the transaction back.
type txResult[R any] struct {
	value R
	err   error
}

func commit[R any](value R) txResult[R] {
	return txResult[R]{value: value}
}

func rollback[R any](err error) txResult[R] {
	return txResult[R]{err: err}
}

// retryBackoff is the pause before the n-th retry, scaled by n.
var retryBackoff = 10 * time.Millisecond

// runInTx executes fn in a transaction on b's handle. Transient concurrency
// failures restart the whole body, up to b.attempts times.
func runInTx[T entity.Entity, R any](ctx context.Context, b *Base[T], op string, fn func(context.Context, bun.Tx) txResult[R]) (R, error) {
	var zero R
	logger := b.logger.With(slog.String("tx_id", uuid.NewString()), slog.String("op", op))

	for attempt := 1; ; attempt++ {
		start := time.Now()
		value, err := attemptTx(ctx, b.db, logger, fn)
		elapsed := time.Since(start)

		if err == nil {
			b.metrics.Tx(b.Table(), "commit", elapsed)
			logger.Debug("transaction committed", slog.Int("attempt", attempt), slog.Duration("elapsed", elapsed))
			return value, nil
		}

		if attempt >= b.attempts || !isTransient(err) || ctx.Err() != nil {
			b.metrics.Tx(b.Table(), "rollback", elapsed)
			logger.Warn("transaction rolled back", slog.Int("attempt", attempt), slog.Any("error", err))
			return zero, err
		}

		b.metrics.Tx(b.Table(), "retry", elapsed)
		logger.Warn("transaction retry", slog.Int("attempt", attempt), slog.Any("error", err))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
}

func attemptTx[R any](ctx context.Context, db bun.IDB, logger *slog.Logger, fn func(context.Context, bun.Tx) txResult[R]) (R, error) {
	var zero R

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	res := fn(ctx, tx)
	if res.err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !goerrors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("rollback failed", slog.Any("error", rbErr))
		}
		return zero, res.err
	}

	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return res.value, nil
}

// isTransient reports serialization and lock failures worth retrying.
func isTransient(err error) bool {
	var liteErr sqlite3.Error
	if goerrors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var pgErr *pq.Error
	if goerrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}
