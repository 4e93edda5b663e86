package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/autofill/idgen"
	"github.com/hazyhaar/autofill/kit"
)

var newTraceID = idgen.NanoID(12)

// TraceID tags each request with a trace id (kit.TraceIDKey, X-Trace-ID
// header) and a request-scoped logger (LoggerKey). An incoming X-Trace-ID is
// kept so a caller can follow one run across processes.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" || len(traceID) > 64 {
			traceID = newTraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithTransport(ctx, "http")
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("shield: request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger returns the request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
