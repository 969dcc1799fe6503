/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Shared sqlite-backed storage handle
 */

// Package store opens and migrates the single sqlite database
// internal/index and internal/journal share (spec.md §4.8
// "Durability": the journal is backed by the same store as the live
// index, or a sibling). It owns no domain schema of its own; callers
// register their migrations and the store applies whichever of them
// haven't yet run, tracked in a schema_version table.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Migration is one forward-only schema step. Version must be
// strictly increasing across the set passed to Open; the store
// applies migrations in ascending Version order.
type Migration struct {
	Version int
	SQL     string
}

// Store wraps a *sql.DB opened against a single file, with
// WAL-mode and foreign-key enforcement turned on (the pure-Go
// modernc.org/sqlite driver, matching the rest of the process, which
// already carries one cgo dependency via gousb and gains nothing from
// a second for the embedded store).
type Store struct {
	DB *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path, applies
// any migration in migrations not yet recorded in schema_version, and
// returns the ready Store. path's parent directory is created if
// missing.
func Open(path string, migrations []Migration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: %s", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %s", path, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %s", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %s", err)
	}

	s := &Store{DB: db}
	if err := s.migrate(migrations); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) migrate(migrations []Migration) error {
	if _, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("store: migrate: %s", err)
	}

	applied := map[int]bool{}
	rows, err := s.DB.Query(`SELECT version FROM schema_version`)
	if err != nil {
		return fmt.Errorf("store: migrate: %s", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("store: migrate: %s", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		tx, err := s.DB.Begin()
		if err != nil {
			return fmt.Errorf("store: migrate v%d: %s", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: migrate v%d: %s", m.Version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: migrate v%d: %s", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: migrate v%d: %s", m.Version, err)
		}
	}

	return nil
}

// StoreError classifies a storage-layer failure, per spec.md §7's
// "Journal / index errors: corruption, schema-mismatch, io".
type StoreError struct {
	Kind    StoreErrorKind
	Message string
}

// StoreErrorKind enumerates the kinds StoreError carries.
type StoreErrorKind int

const (
	ErrKindIO StoreErrorKind = iota
	ErrKindCorruption
	ErrKindSchemaMismatch
)

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Kind, e.Message)
}

func (k StoreErrorKind) String() string {
	switch k {
	case ErrKindIO:
		return "io"
	case ErrKindCorruption:
		return "corruption"
	case ErrKindSchemaMismatch:
		return "schema-mismatch"
	}
	return "unknown"
}
