// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slub/qucosa-migrate/internal/db"
)

// TempDB creates a migrated temporary SQLite database that is closed when
// the test ends.
func TempDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// WriteFile writes content to a file in dir and returns its path.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// Fixture returns the path of a file under the source test data.
func Fixture(t *testing.T, name string) string {
	t.Helper()
	_, err := os.Stat(filepath.Join("..", "source", "testdata", name))
	if err == nil {
		return filepath.Join("..", "source", "testdata", name)
	}
	path := filepath.Join("..", "..", "internal", "source", "testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Fixture %s not found: %v", name, err)
	}
	return path
}
