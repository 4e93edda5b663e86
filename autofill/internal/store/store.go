// Package store provides the SQLite persistence layer for autofill: the
// per-label memory cache and stored profile snapshots.
package store

import (
	"database/sql"

	"github.com/hazyhaar/autofill/dbopen"
)

// Schema contains the DDL for the autofill tables.
const Schema = `
-- Last value filled per cleaned label. Read before every fill, written after.
CREATE TABLE IF NOT EXISTS autofill_memory (
    label       TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    fills       INTEGER NOT NULL DEFAULT 1,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_autofill_memory_updated ON autofill_memory(updated_at DESC);

-- Profile documents, stored as received so unknown keys survive.
CREATE TABLE IF NOT EXISTS profiles (
    id          TEXT PRIMARY KEY,
    data        TEXT NOT NULL,
    updated_at  INTEGER NOT NULL
);
`

// Store is the autofill database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the autofill database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
