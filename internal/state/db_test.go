package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// setupTestDB opens and migrates a database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lcpipe", "history", "state.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// a regular file cannot be a parent directory
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(blocker, "state.db")); err == nil {
		t.Error("expected error opening db under a file")
	}
}

func TestClose(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := db.ListRuns(1); err == nil {
		t.Error("expected error after close")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (again, %d) failed: %v", i, err)
		}
	}

	rows, err := db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			t.Fatal(err)
		}
		versions = append(versions, v)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, versions); diff != "" {
		t.Errorf("schema versions mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"runs", "task_results", "retile_records"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestTimeEncoding(t *testing.T) {
	local := time.Date(2024, 3, 5, 14, 30, 0, 0, time.FixedZone("CET", 3600))

	s := formatTime(local)
	if s != "2024-03-05T13:30:00Z" {
		t.Errorf("formatTime = %q", s)
	}
	back, err := parseTime(s)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(local) {
		t.Errorf("parseTime(%q) = %v, want %v", s, back, local)
	}

	if parseNullableTime(sql.NullString{}) != nil {
		t.Error("NULL should parse to nil")
	}
	if parseNullableTime(sql.NullString{String: "yesterday", Valid: true}) != nil {
		t.Error("garbage should parse to nil")
	}
	if got := parseNullableTime(sql.NullString{String: s, Valid: true}); got == nil || !got.Equal(local) {
		t.Errorf("parseNullableTime = %v", got)
	}
}
