// Package shield holds the HTTP middleware stack in front of the autofill API:
// security headers, request body limits and per-request trace ids.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(8 << 20) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the middleware for the JSON API, outermost first:
// HeadToGet, SecurityHeaders, MaxBody, TraceID.
func APIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}
