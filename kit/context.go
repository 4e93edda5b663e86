package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp", "cli"
	TraceIDKey   contextKey = "kit_trace_id"
	RunIDKey     contextKey = "kit_run_id"
	SiteTypeKey  contextKey = "kit_site_type"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport defaults to "http", the transport of most calls.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithRunID tags ctx with the id of the autofill run in progress.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}
func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(RunIDKey).(string)
	return v
}

func WithSiteType(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, SiteTypeKey, site)
}
func GetSiteType(ctx context.Context) string {
	v, _ := ctx.Value(SiteTypeKey).(string)
	return v
}

// LogAttrs returns the slog key/value pairs for the ids carried by ctx.
// Unset ids are left out.
//
//	log := logger.With(kit.LogAttrs(ctx)...)
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if v := GetRunID(ctx); v != "" {
		attrs = append(attrs, "run_id", v)
	}
	if v := GetTraceID(ctx); v != "" {
		attrs = append(attrs, "trace_id", v)
	}
	if v := GetSiteType(ctx); v != "" {
		attrs = append(attrs, "site_type", v)
	}
	if v, ok := ctx.Value(TransportKey).(string); ok {
		attrs = append(attrs, "transport", v)
	}
	return attrs
}
