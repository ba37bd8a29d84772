package main

import (
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"
)

func TestBuildSQLiteDSN_PragmaParams(t *testing.T) {
	dsn := buildSQLiteDSN("test.db")

	if want := "_pragma=busy_timeout%285000%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
	if want := "_pragma=journal_mode%28WAL%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
	if want := "_pragma=synchronous%28NORMAL%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
	if !strings.HasPrefix(dsn, "test.db?") {
		t.Fatalf("expected DSN to keep the path, got %q", dsn)
	}
}

func TestBuildSQLiteDSN_PreservesExistingQuery(t *testing.T) {
	dsn := buildSQLiteDSN("test.db?cache=shared")
	if !strings.Contains(dsn, "cache=shared") {
		t.Fatalf("expected existing query to be preserved, got %q", dsn)
	}
	if !strings.Contains(dsn, "_pragma=") {
		t.Fatalf("expected pragma params, got %q", dsn)
	}
}

func TestBuildSQLiteDSN_MemorySkipsWAL(t *testing.T) {
	dsn := buildSQLiteDSN(":memory:")
	if strings.Contains(dsn, "journal_mode") {
		t.Fatalf("expected no journal_mode pragma for in-memory database, got %q", dsn)
	}
}

// newTestDB opens a fresh sqlite file in a per-test temp directory.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := openDatabase(&Config{}, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("openDatabase: %v", err)
	}
	t.Cleanup(func() {
		_ = closeDatabase(db)
	})

	return db
}
