// CLAUDE:SUMMARY Label memory cache: get, upsert with fill counter, list, forget, clear.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/autofill/dbopen"
)

// MemoryEntry is one remembered label.
type MemoryEntry struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Fills     int    `json:"fills"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Get returns the remembered value for label.
func (s *Store) Get(ctx context.Context, label string) (string, bool, error) {
	var v string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM autofill_memory WHERE label = ?`, label).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get memory: %w", err)
	}
	return v, true, nil
}

// Set remembers value for label, replacing any previous value.
func (s *Store) Set(ctx context.Context, label, value string) error {
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO autofill_memory (label, value, fills, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			value = excluded.value,
			fills = autofill_memory.fills + 1,
			updated_at = excluded.updated_at`,
		label, value, now, now)
	if err != nil {
		return fmt.Errorf("store: set memory: %w", err)
	}
	return nil
}

// ListMemory returns entries, most recently updated first. limit <= 0 means
// no limit.
func (s *Store) ListMemory(ctx context.Context, limit int) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT label, value, fills, created_at, updated_at
		FROM autofill_memory ORDER BY updated_at DESC, label LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list memory: %w", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.Label, &e.Value, &e.Fills, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan memory: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ForgetMemory removes label. It reports whether an entry existed.
func (s *Store) ForgetMemory(ctx context.Context, label string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM autofill_memory WHERE label = ?`, label)
	if err != nil {
		return false, fmt.Errorf("store: forget memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearMemory removes every entry and returns how many there were.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM autofill_memory`)
	if err != nil {
		return 0, fmt.Errorf("store: clear memory: %w", err)
	}
	return res.RowsAffected()
}
