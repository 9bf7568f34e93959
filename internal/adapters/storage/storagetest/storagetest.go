// Package storagetest opens migrated SQLite databases for store tests.
package storagetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"dojo/internal/adapters/storage"
)

// Open returns a migrated database in a temp directory, closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, path); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}
	return db
}
