// Package watch polls a SQLite database for a version token and runs an
// action once the token has changed and settled. autofill uses it to rebuild
// connectivity routes when the routes table is edited, by this process or by
// another one sharing the file.
//
//	w := watch.New(db, watch.Options{Interval: 2 * time.Second, Debounce: 250 * time.Millisecond})
//	go w.OnChange(ctx, func() error { return router.Reload(ctx, db) })
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two different tokens mean "changed".
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval is the polling period. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period required after a change before the
	// action runs. 0 runs it on the poll that saw the change.
	Debounce time.Duration
	// Detector defaults to PragmaDataVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher runs an action on change. Stats and Version are safe to call
// while OnChange runs.
type Watcher struct {
	db   *sql.DB
	opts Options

	version  atomic.Int64
	checks   atomic.Int64
	changes  atomic.Int64
	failures atomic.Int64
	reloads  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks   int64 `json:"checks"`
	Changes  int64 `json:"changes"`
	Failures int64 `json:"failures"`
	Reloads  int64 `json:"reloads"`
}

// New creates a Watcher. Nothing happens until OnChange is called.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:   w.checks.Load(),
		Changes:  w.changes.Load(),
		Failures: w.failures.Load(),
		Reloads:  w.reloads.Load(),
	}
}

// Version returns the token of the last successful action.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange polls until ctx is done. A failed action leaves the version
// untouched, so the next poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var settle <-chan time.Time
	var timer *time.Timer
	pending := int64(-1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.failures.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(log, action, pending)
				pending = -1
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			settle = timer.C

		case <-settle:
			settle = nil
			if pending >= 0 {
				w.fire(log, action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) fire(log *slog.Logger, action func() error, ver int64) {
	if err := action(); err != nil {
		w.failures.Add(1)
		log.Error("watch: reload failed", "version", ver, "error", err)
		return
	}
	w.reloads.Add(1)
	w.version.Store(ver)
	log.Debug("watch: reloaded", "version", ver)
}

// PragmaDataVersion changes whenever another connection commits to the
// database file.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// MaxColumn returns a Detector reading MAX(column) of table. It also sees
// writes made through the watcher's own connection pool.
func MaxColumn(table, column string) Detector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) + COUNT(*) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
