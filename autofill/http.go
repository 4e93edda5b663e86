// CLAUDE:SUMMARY HTTP API for autofill: health, scan/fill/run, profile and memory administration, MCP streamable endpoint.
package autofill

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/autofill/connectivity"
	"github.com/hazyhaar/autofill/horosafe"
	"github.com/hazyhaar/autofill/shield"
)

// Handler returns the HTTP API. mcpSrv, when non-nil, is served on /mcp.
//
//	GET    /healthz
//	POST   /api/scan
//	POST   /api/fill
//	POST   /api/run
//	POST   /api/resolve     (remote tier contract, local rules)
//	GET    /api/profile[?id=]
//	PUT    /api/profile[?id=]
//	DELETE /api/profile[?id=]
//	GET    /api/memory[?limit=]
//	DELETE /api/memory[?label=]
//	GET    /api/routes
//	PUT    /api/routes/{service}
//	DELETE /api/routes/{service}
func (s *Service) Handler(mcpSrv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(s.cfg.HTTP.MaxBody) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"remote_routable": s.router.Routable(s.cfg.Remote.Service),
			"remote_breaker":  s.engine.Resolver().Breaker().State().String(),
			"route_watch":     s.routes.Stats(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", func(w http.ResponseWriter, r *http.Request) {
			var req ScanRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			res, err := s.ScanHTML(r.Context(), req)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/fill", func(w http.ResponseWriter, r *http.Request) {
			var req FillRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			res, err := s.FillHTML(r.Context(), req)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
			var req PageRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			rep, err := s.RunPage(r.Context(), req)
			if err != nil {
				code := http.StatusBadGateway
				if errors.Is(err, horosafe.ErrSSRF) || errors.Is(err, horosafe.ErrUnsafeScheme) {
					code = http.StatusBadRequest
				}
				writeError(w, r, code, err)
				return
			}
			writeJSON(w, http.StatusOK, rep)
		})

		r.Post("/resolve", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err)
				return
			}
			resp, err := handleResolve(r.Context(), body)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(resp)
		})

		r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
			p, err := s.GetProfile(r.Context(), r.URL.Query().Get("id"))
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			if p == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(p.Document())
		})

		r.Put("/profile", func(w http.ResponseWriter, r *http.Request) {
			var doc json.RawMessage
			if !decodeJSON(w, r, &doc) {
				return
			}
			if _, err := s.PutProfile(r.Context(), r.URL.Query().Get("id"), doc); err != nil {
				writeError(w, r, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
		})

		r.Delete("/profile", func(w http.ResponseWriter, r *http.Request) {
			ok, err := s.DeleteProfile(r.Context(), r.URL.Query().Get("id"))
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		})

		r.Get("/memory", func(w http.ResponseWriter, r *http.Request) {
			entries, err := s.ListMemory(r.Context(), queryInt(r, "limit", 0))
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			if entries == nil {
				entries = []MemoryEntry{}
			}
			writeJSON(w, http.StatusOK, entries)
		})

		r.Delete("/memory", func(w http.ResponseWriter, r *http.Request) {
			n, err := s.ForgetMemory(r.Context(), r.URL.Query().Get("label"))
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
		})

		r.Get("/routes", func(w http.ResponseWriter, r *http.Request) {
			routes, err := s.Routes(r.Context())
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			if routes == nil {
				routes = []connectivity.RouteRow{}
			}
			writeJSON(w, http.StatusOK, routes)
		})

		r.Put("/routes/{service}", func(w http.ResponseWriter, r *http.Request) {
			var req RouteRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			req.Service = chi.URLParam(r, "service")
			if err := s.SetRoute(r.Context(), req); err != nil {
				writeError(w, r, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
		})

		r.Delete("/routes/{service}", func(w http.ResponseWriter, r *http.Request) {
			err := s.DeleteRoute(r.Context(), chi.URLParam(r, "service"))
			var nf *connectivity.ErrServiceNotFound
			switch {
			case errors.As(err, &nf):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			case err != nil:
				writeError(w, r, http.StatusInternalServerError, err)
			default:
				writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			}
		})
	})

	if mcpSrv != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}
	return r
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= 500 {
		shield.GetLogger(r.Context()).Error("autofill: request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
