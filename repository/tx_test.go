package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-content-repository/errcodes"
	"github.com/goliatone/go-content-repository/internal/metrics"
)

func newMockRepo(t *testing.T, opts ...Option) (*ArticleRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	repo, err := NewArticleRepository(db, opts...)
	require.NoError(t, err)
	return repo, mock
}

var articleColumns = []string{"id", "user_id", "title", "body", "published_at", "user.id", "user.email"}

func TestRunInTx_RetriesTransientFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo, mock := newMockRepo(t, WithMetrics(m))

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	got, err := runInTx(context.Background(), repo.Base, "test", func(ctx context.Context, tx bun.Tx) txResult[int] {
		calls++
		if calls == 1 {
			return rollback[int](sqlite3.Error{Code: sqlite3.ErrBusy})
		}
		return commit(42)
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxTotal.WithLabelValues("articles", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxTotal.WithLabelValues("articles", "commit")))
}

func TestRunInTx_BoundedAttempts(t *testing.T) {
	repo, mock := newMockRepo(t, WithAttempts(2))

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	calls := 0
	_, err := runInTx(context.Background(), repo.Base, "test", func(ctx context.Context, tx bun.Tx) txResult[int] {
		calls++
		return rollback[int](&pq.Error{Code: "40001"})
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_NoRetryOnPermanentFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	boom := errors.New("constraint failed")
	_, err := runInTx(context.Background(), repo.Base, "test", func(ctx context.Context, tx bun.Tx) txResult[int] {
		calls++
		return rollback[int](boom)
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_CommitFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit lost"))

	_, err := runInTx(context.Background(), repo.Base, "test", func(ctx context.Context, tx bun.Tx) txResult[string] {
		return commit("ok")
	})
	assert.EqualError(t, err, "commit lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrUpdate_RollsBackFailedUpdate(t *testing.T) {
	inv := &recordingInvalidator{}
	repo, mock := newMockRepo(t, WithInvalidator(inv, "articles"))

	published := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "articles" AS "article" JOIN "users" AS "user"`).
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow(int64(1), int64(1), "Hello Go", "First post body", published, int64(1), "alice@example.com"))
	mock.ExpectExec(`UPDATE "articles" SET "title" = 'Changed' WHERE .*"id" = 1`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := repo.CreateOrUpdate(context.Background(), map[string]any{"id": 1, "title": "Changed"})

	requireCode(t, err, errcodes.GenericSQLError)
	assert.Contains(t, errcodes.Message(err), "disk I/O error")
	assert.Zero(t, inv.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrUpdate_UpdatesOnlyChangedColumns(t *testing.T) {
	inv := &recordingInvalidator{}
	repo, mock := newMockRepo(t, WithInvalidator(inv, "articles"))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "articles" AS "article"`).
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow(int64(3), int64(1), "Draft notes", "Work in progress", nil, int64(1), "alice@example.com"))
	mock.ExpectExec(`UPDATE "articles" SET "body" = 'Done' WHERE .*"id" = 3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.CreateOrUpdate(context.Background(), map[string]any{
		"id":    3,
		"title": "Draft notes",
		"body":  "Done",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, 1, inv.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_ZeroRowsIsGenericSQLError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "articles" AS "article"`).
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow(int64(3), int64(1), "Draft notes", "Work in progress", nil, int64(1), "alice@example.com"))
	mock.ExpectExec(`DELETE FROM "articles"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.Delete(context.Background(), 3)

	assert.False(t, ok)
	requireCode(t, err, errcodes.GenericSQLError)
	assert.Contains(t, errcodes.Message(err), "cannot delete")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: true},
		{name: "sqlite locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, want: true},
		{name: "sqlite constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}, want: false},
		{name: "postgres serialization", err: &pq.Error{Code: "40001"}, want: true},
		{name: "postgres deadlock", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "postgres unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "wrapped busy", err: fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), want: true},
		{name: "plain", err: errors.New("nope"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestSameValue(t *testing.T) {
	utc := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("CET", 3600))

	assert.True(t, sameValue(utc, local))
	assert.True(t, sameValue(nil, nil))
	assert.True(t, sameValue(int64(3), int64(3)))
	assert.False(t, sameValue(nil, utc))
	assert.False(t, sameValue(utc, nil))
	assert.False(t, sameValue("a", "b"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!%", escapeLike("100%"))
	assert.Equal(t, "a!_b", escapeLike("a_b"))
	assert.Equal(t, "wow!!", escapeLike("wow!"))
}

func TestResolveGet(t *testing.T) {
	assert.True(t, ResolveGet().ActiveOnly)
	assert.False(t, ResolveGet(WithInactive()).ActiveOnly)
	assert.True(t, ResolveGet(WithInactive(), ActiveOnly(true)).ActiveOnly)
	assert.True(t, ResolveGet(nil).ActiveOnly)
}
