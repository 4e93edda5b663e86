package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/autofill/autofill/profile"
	"github.com/hazyhaar/autofill/dbopen"
)

// DefaultProfileID is the profile used when none is named.
const DefaultProfileID = "default"

// PutProfile validates and stores a profile document under id.
func (s *Store) PutProfile(ctx context.Context, id string, doc []byte) (*profile.Profile, error) {
	p, err := profile.Parse(doc)
	if err != nil {
		return nil, err
	}
	_, err = dbopen.Exec(ctx, s.DB, `
		INSERT INTO profiles (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, string(doc), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: put profile: %w", err)
	}
	return p, nil
}

// GetProfile returns the profile stored under id, nil when absent.
func (s *Store) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	var data string
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM profiles WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	p, err := profile.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("store: stored profile %q: %w", id, err)
	}
	return p, nil
}

// DeleteProfile removes the profile stored under id and reports whether
// there was one.
func (s *Store) DeleteProfile(ctx context.Context, id string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete profile: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ProfileSource reads one stored profile on every call.
type ProfileSource struct {
	Store *Store
	ID    string
}

// Profile implements the engine's profile collaborator.
func (ps ProfileSource) Profile(ctx context.Context) (*profile.Profile, error) {
	id := ps.ID
	if id == "" {
		id = DefaultProfileID
	}
	return ps.Store.GetProfile(ctx, id)
}
