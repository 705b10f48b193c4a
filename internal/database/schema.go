package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		body VARCHAR(1000) NOT NULL,
		published_at TIMESTAMP NULL
	)`,
	`CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		body VARCHAR(1000) NOT NULL,
		published_at TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at)`,
}

// CreateSchema creates the users and articles tables when they are missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	statements := sqliteSchema
	if db.Dialect().Name() == dialect.PG {
		statements = postgresSchema
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
