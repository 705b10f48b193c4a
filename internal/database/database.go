// Package database opens bun handles for the supported drivers.
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to dsn with the given driver and wraps the pool in a bun.DB
// using the matching dialect. The connection is verified with a ping.
func Open(driver, dsn string) (*bun.DB, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(normalize(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if normalize(driver) == DriverSQLite {
		// sqlite serializes writers; one connection keeps in-memory
		// databases shared and avoids SQLITE_BUSY on the pool itself.
		sqldb.SetMaxOpenConns(1)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return bun.NewDB(sqldb, dialect), nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch normalize(driver) {
	case DriverSQLite:
		return sqlitedialect.New(), nil
	case DriverPostgres:
		return pgdialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func normalize(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	default:
		return driver
	}
}
