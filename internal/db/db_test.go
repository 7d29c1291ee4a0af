package db_test

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/slub/qucosa-migrate/internal/db"
)

func openTemp(t *testing.T) (*db.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, dbPath
}

func TestMigrateAppliesAllOnce(t *testing.T) {
	database, _ := openTemp(t)

	applied, err := database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("MigrateWithInfo failed: %v", err)
	}
	want := []string{"000001_runs.sql", "000002_dead_letters.sql"}
	if !reflect.DeepEqual(applied, want) {
		t.Errorf("expected %v applied, got %v", want, applied)
	}

	applied, err = database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("second MigrateWithInfo failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing applied on second run, got %v", applied)
	}

	for _, table := range []string{"runs", "outcomes", "dead_letters"} {
		var n int
		if err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestRequiresMigrationError(t *testing.T) {
	database, dbPath := openTemp(t)

	_, err := database.Exec(`
		CREATE TABLE schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)
	`)
	if err != nil {
		t.Fatalf("could not create schema_migrations: %v", err)
	}
	if _, err := database.Exec(`INSERT INTO schema_migrations (version) VALUES ('000001_runs.sql')`); err != nil {
		t.Fatalf("could not insert migration: %v", err)
	}

	migErr := database.RequiresMigrationError()
	if migErr == nil {
		t.Fatal("expected migration error, got nil")
	}
	errStr := migErr.Error()
	for _, want := range []string{dbPath, "000001_runs.sql", "1 pending migration"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should contain %q, got: %s", want, errStr)
		}
	}
}

func TestRequiresMigrationErrorFreshDB(t *testing.T) {
	database, _ := openTemp(t)

	migErr := database.RequiresMigrationError()
	if migErr == nil {
		t.Fatal("expected migration error for fresh db, got nil")
	}
	if !strings.Contains(migErr.Error(), "version: none") {
		t.Errorf("fresh db error should contain 'version: none', got: %s", migErr)
	}
}

func TestRequiresMigrationErrorFullyMigrated(t *testing.T) {
	database, _ := openTemp(t)
	if err := database.Migrate(); err != nil {
		t.Fatalf("could not run migrations: %v", err)
	}
	if migErr := database.RequiresMigrationError(); migErr != nil {
		t.Errorf("expected nil for fully migrated db, got: %v", migErr)
	}
}
