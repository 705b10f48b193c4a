package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-repository/internal/database"
)

// SeedUser and SeedArticle describe the rows inserted by NewSQLiteDB.
type SeedUser struct {
	ID    int64
	Email string
}

type SeedArticle struct {
	ID          int64
	UserID      int64
	Title       string
	Body        string
	PublishedAt *time.Time
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

var SeedUsers = []SeedUser{
	{ID: 1, Email: "alice@example.com"},
	{ID: 2, Email: "bob@example.com"},
}

// SeedArticles holds three published articles and one draft (id 3).
var SeedArticles = []SeedArticle{
	{ID: 1, UserID: 1, Title: "Hello Go", Body: "First post body", PublishedAt: at("2024-01-01T10:00:00Z")},
	{ID: 2, UserID: 2, Title: "Caching 101", Body: "Tags and TTLs", PublishedAt: at("2024-02-01T10:00:00Z")},
	{ID: 3, UserID: 1, Title: "Draft notes", Body: "Work in progress", PublishedAt: nil},
	{ID: 4, UserID: 2, Title: "100% coverage", Body: "Percent_signs matter", PublishedAt: at("2024-03-01T10:00:00Z")},
}

// NewSQLiteDB opens a file backed SQLite database under t.TempDir, creates
// the content schema and inserts the seed rows. The handle is closed when
// the test ends.
func NewSQLiteDB(t testing.TB) *bun.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "content.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := database.Open(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := database.CreateSchema(ctx, db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	return db
}

// Seed inserts SeedUsers and SeedArticles into db.
func Seed(ctx context.Context, db bun.IDB) error {
	for _, u := range SeedUsers {
		if _, err := db.ExecContext(ctx, "INSERT INTO users (id, email) VALUES (?, ?)", u.ID, u.Email); err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}
	for _, a := range SeedArticles {
		var published any
		if a.PublishedAt != nil {
			published = *a.PublishedAt
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO articles (id, user_id, title, body, published_at) VALUES (?, ?, ?, ?, ?)",
			a.ID, a.UserID, a.Title, a.Body, published,
		); err != nil {
			return fmt.Errorf("seed article %d: %w", a.ID, err)
		}
	}
	return nil
}
