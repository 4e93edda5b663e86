// Package dbopen opens the SQLite file that backs autofill: label memory,
// profile snapshots, connectivity routes and run events all share it.
//
// Pragmas go through Exec rather than DSN parameters so any database/sql
// SQLite driver works. The caller blank-imports the driver; modernc.org/sqlite
// registers "sqlite".
//
//	db, err := dbopen.Open("autofill.db", dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const memoryPath = ":memory:"

// settings collects what the options ask for before the handle is created.
type settings struct {
	driver   string
	pragmas  []string
	schemas  []string
	mkdirAll bool
}

// Option adjusts Open.
type Option func(*settings)

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(s *settings) { s.mkdirAll = true } }

// WithSchema adds DDL executed once the pragmas are in place. Schemas run in
// the order given, so a later one may reference tables of an earlier one.
func WithSchema(ddl string) Option {
	return func(s *settings) { s.schemas = append(s.schemas, ddl) }
}

// Open returns a ready handle on path with WAL journaling, a 10 s busy
// timeout and foreign keys enforced.
func Open(path string, opts ...Option) (*sql.DB, error) {
	s := settings{
		driver: "sqlite",
		pragmas: []string{
			"foreign_keys = ON",
			"journal_mode = WAL",
			"busy_timeout = 10000",
			"synchronous = NORMAL",
		},
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.mkdirAll && path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: create dir for %s: %w", path, err)
		}
	}

	db, err := sql.Open(s.driver, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := s.prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *settings) prepare(db *sql.DB) error {
	for _, p := range s.pragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			return fmt.Errorf("dbopen: pragma %s: %w", p, err)
		}
	}
	for i, ddl := range s.schemas {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("dbopen: ping: %w", err)
	}
	return nil
}

// OpenMemory is Open on a private in-memory database for tests. The pool is
// pinned to one connection since every ":memory:" connection is its own
// database. Cleanup closes it.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen: memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
