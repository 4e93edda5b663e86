package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/autofill/idgen"
	"github.com/hazyhaar/autofill/kit"
)

// BusinessEvent is one domain-level event, e.g. a finished autofill run.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	Action      string
	Details     string // optional JSON
	Success     bool
	// TraceID defaults to the trace id carried by the LogEvent ctx.
	TraceID string
}

// EventLogger writes business events.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets the generator used for event ids.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithEventLogger sets the slog logger used to report write failures.
func WithEventLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewEventLogger creates an EventLogger on a database with Schema applied.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records event with the trace id and transport found in ctx, so
// an HTTP request or MCP call can be joined to the runs it triggered.
// Failures are logged, never returned: a broken event store must not fail a
// run.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	if event.TraceID == "" {
		event.TraceID = kit.GetTraceID(ctx)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			action, details, success, trace_id, transport, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.Action, event.Details, event.Success, event.TraceID, kit.GetTransport(ctx), time.Now().Unix())
	if err != nil {
		l.logger.With(kit.LogAttrs(ctx)...).ErrorContext(ctx, "observability: event log failed",
			"error", err, "event_type", event.EventType)
	}
}

// RetentionConfig is per-table retention in days. Zero disables cleanup.
type RetentionConfig struct {
	EventLogsDays int
	MetricsDays   int
}

// Cleanup deletes rows older than the configured retention.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()
	targets := []struct {
		query string
		days  int
	}{
		{"DELETE FROM business_event_logs WHERE created_at < ?", cfg.EventLogsDays},
		{"DELETE FROM metrics_timeseries WHERE timestamp < ?", cfg.MetricsDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, t.query, now-int64(t.days*86400)); err != nil {
			return fmt.Errorf("observability: cleanup: %w", err)
		}
	}
	return nil
}
