package shield

import "net/http"

// HeadToGet lets probes HEAD the GET-only routes (/healthz, /api/profile,
// /api/memory). The server drops the body of a HEAD response on its own.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		get := r.Clone(r.Context())
		get.Method = http.MethodGet
		next.ServeHTTP(w, get)
	})
}
