// Package testutil builds throwaway SQLite files for tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// KarlSchema mirrors the two tables the report knows about.
var KarlSchema = []string{
	`CREATE TABLE container_states (
		user_id TEXT PRIMARY KEY,
		state_data BLOB,
		version INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE interaction_data (
		type TEXT,
		user_id TEXT,
		timestamp INTEGER,
		details TEXT
	)`,
}

// SQLiteFile creates a database file in a per-test temp dir, runs stmts in
// order and closes it again. The returned path is ready for read-only use.
func SQLiteFile(t testing.TB, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "karl_database.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening fixture database: %v", err)
	}
	defer db.Close()

	// Force file creation even when no statements are given.
	if err := db.Ping(); err != nil {
		t.Fatalf("pinging fixture database: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("initialising fixture database: %v", err)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture statement %q: %v", stmt, err)
		}
	}
	return path
}
