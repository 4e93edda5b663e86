package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// busyBackoff is the wait before each retry of a locked write.
var busyBackoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

var busyMarkers = []string{"SQLITE_BUSY", "database is locked", "database table is locked"}

// IsBusy reports whether err comes from a lock held by another connection.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Exec runs a write, retrying while SQLite reports the database locked.
// The parallel memory writes at the end of a fill run are the usual source.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	res, err := db.ExecContext(ctx, query, args...)
	for _, wait := range busyBackoff {
		if !IsBusy(err) {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dbopen: retry on busy: %w", ctx.Err())
		case <-timer.C:
		}
		res, err = db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
