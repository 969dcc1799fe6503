package store

import (
	"path/filepath"
	"testing"
)

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	migrations := []Migration{
		{Version: 1, SQL: `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`},
		{Version: 2, SQL: `INSERT INTO widgets (id) VALUES (1), (2)`},
	}

	s, err := Open(path, migrations)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer s.Close()

	var count int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count); err != nil {
		t.Fatalf("query: %s", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	s.Close()

	// Reopening with the same migrations must not re-run them
	// (schema_version already records both versions applied).
	s2, err := Open(path, migrations)
	if err != nil {
		t.Fatalf("re-Open: %s", err)
	}
	defer s2.Close()

	if err := s2.DB.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count); err != nil {
		t.Fatalf("query: %s", err)
	}
	if count != 2 {
		t.Fatalf("count after reopen = %d, want 2 (migrations must not re-run)", count)
	}
}

func TestOpenAppliesOnlyNewMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, []Migration{
		{Version: 1, SQL: `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`},
	})
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	s.Close()

	s2, err := Open(path, []Migration{
		{Version: 1, SQL: `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`},
		{Version: 2, SQL: `ALTER TABLE widgets ADD COLUMN name TEXT`},
	})
	if err != nil {
		t.Fatalf("Open with new migration: %s", err)
	}
	defer s2.Close()

	if _, err := s2.DB.Exec(`INSERT INTO widgets (id, name) VALUES (1, 'a')`); err != nil {
		t.Fatalf("insert into migrated column: %s", err)
	}
}
