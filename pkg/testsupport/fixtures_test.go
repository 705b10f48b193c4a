package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "config.yaml")
	testContent := []byte("cache:\n  ttl: 1d\n")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := LoadFixture(t, testFile)
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestTempFile(t *testing.T) {
	testContent := []byte("database:\n  driver: sqlite3\n")

	tempPath := TempFile(t, testContent)

	result, err := os.ReadFile(tempPath)
	if err != nil {
		t.Fatalf("failed to read temp file: %v", err)
	}
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
	if !strings.Contains(filepath.Base(tempPath), "test-") {
		t.Errorf("temp file name should contain 'test-', got %s", tempPath)
	}
}

func TestFixturePath(t *testing.T) {
	result := FixturePath("config.yaml")
	expected := filepath.Join("testdata", "config.yaml")

	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestNewSQLiteDB(t *testing.T) {
	db := NewSQLiteDB(t)
	ctx := context.Background()

	var users, articles, drafts int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&articles); err != nil {
		t.Fatalf("count articles: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE published_at IS NULL").Scan(&drafts); err != nil {
		t.Fatalf("count drafts: %v", err)
	}

	if users != len(SeedUsers) {
		t.Errorf("expected %d users, got %d", len(SeedUsers), users)
	}
	if articles != len(SeedArticles) {
		t.Errorf("expected %d articles, got %d", len(SeedArticles), articles)
	}
	if drafts != 1 {
		t.Errorf("expected 1 draft, got %d", drafts)
	}
}

func TestSeed_Twice(t *testing.T) {
	db := NewSQLiteDB(t)

	if err := Seed(context.Background(), db); err == nil {
		t.Error("expected duplicate seed rows to be rejected")
	}
}
