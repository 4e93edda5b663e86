package autofill

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_Healthz(t *testing.T) {
	h := newService(t, nil).Handler(nil)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["remote_routable"] != false || body["remote_breaker"] != "closed" {
		t.Errorf("body = %v", body)
	}
}

func TestHTTP_ProfileAndFill(t *testing.T) {
	h := newService(t, nil).Handler(nil)

	if rec := do(t, h, http.MethodGet, "/api/profile", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing profile status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/profile", acmeProfile); rec.Code != http.StatusOK {
		t.Fatalf("put profile status = %d: %s", rec.Code, rec.Body)
	}
	rec := do(t, h, http.MethodGet, "/api/profile", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Acme"`) {
		t.Fatalf("get profile = %d %s", rec.Code, rec.Body)
	}

	payload, _ := json.Marshal(FillRequest{HTML: experienceForm})
	rec = do(t, h, http.MethodPost, "/api/fill", string(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("fill status = %d: %s", rec.Code, rec.Body)
	}
	var res FillResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Report.FilledFields != 4 || res.Report.TotalFields != 4 {
		t.Errorf("report = %+v", res.Report)
	}

	rec = do(t, h, http.MethodGet, "/api/memory?limit=10", "")
	var entries []MemoryEntry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 4 {
		t.Errorf("memory entries = %d, want 4", len(entries))
	}

	rec = do(t, h, http.MethodDelete, "/api/memory", "")
	if !strings.Contains(rec.Body.String(), `"removed":4`) {
		t.Errorf("clear memory = %s", rec.Body)
	}
}

func TestHTTP_BadRequests(t *testing.T) {
	h := newService(t, nil).Handler(nil)
	if rec := do(t, h, http.MethodPost, "/api/scan", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/scan", `{"html": ""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty html status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/run", `{"url": "file:///etc/passwd"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("file url status = %d", rec.Code)
	}
}

func TestHTTP_ResolveEndpoint(t *testing.T) {
	h := newService(t, nil).Handler(nil)
	body := `{"fields": [{"field_id": "f1", "label": "Full Name", "type": "text"}], "profile": ` + acmeProfile + `}`
	rec := do(t, h, http.MethodPost, "/api/resolve", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var values map[string]string
	json.Unmarshal(rec.Body.Bytes(), &values)
	if values["f1"] != "Ada Lovelace" {
		t.Errorf("values = %v", values)
	}
}

func TestHTTP_DeleteProfile(t *testing.T) {
	h := newService(t, nil).Handler(nil)
	if rec := do(t, h, http.MethodDelete, "/api/profile", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing profile status = %d, want 404", rec.Code)
	}
	do(t, h, http.MethodPut, "/api/profile?id=alt", acmeProfile)
	if rec := do(t, h, http.MethodDelete, "/api/profile?id=alt", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/profile?id=alt", ""); rec.Code != http.StatusNotFound {
		t.Errorf("profile still served after delete: %d", rec.Code)
	}
}

func TestHTTP_FillEventCarriesTraceID(t *testing.T) {
	svc := newService(t, nil)
	h := svc.Handler(nil)
	do(t, h, http.MethodPut, "/api/profile", acmeProfile)

	payload, _ := json.Marshal(FillRequest{HTML: experienceForm})
	rec := do(t, h, http.MethodPost, "/api/fill", string(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("fill status = %d: %s", rec.Code, rec.Body)
	}
	traceID := rec.Header().Get("X-Trace-ID")
	if traceID == "" {
		t.Fatal("no X-Trace-ID header")
	}

	var gotTrace, transport string
	err := svc.Store().DB.QueryRow(`SELECT trace_id, transport FROM business_event_logs WHERE event_type = 'autofill_run'`).
		Scan(&gotTrace, &transport)
	if err != nil {
		t.Fatal(err)
	}
	if gotTrace != traceID || transport != "http" {
		t.Errorf("event (trace, transport) = (%q, %q), want (%q, http)", gotTrace, transport, traceID)
	}
}

func TestHTTP_Routes(t *testing.T) {
	svc := newService(t, &Config{RouteWatchInterval: 20 * time.Millisecond})
	h := svc.Handler(nil)

	if rec := do(t, h, http.MethodPut, "/api/routes/autofill_remote", `{"strategy": "quic"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown strategy status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/routes/autofill_remote", `{"strategy": "http", "endpoint": "file:///etc/passwd"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("file endpoint status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/routes/autofill_remote", `{"strategy": "noop"}`); rec.Code != http.StatusOK {
		t.Fatalf("put route status = %d: %s", rec.Code, rec.Body)
	}

	rec := do(t, h, http.MethodGet, "/api/routes", "")
	var routes []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &routes)
	if len(routes) != 1 || routes[0]["service_name"] != "autofill_remote" || routes[0]["strategy"] != "noop" {
		t.Fatalf("routes = %v", routes)
	}

	// The route watcher applies the edit without a restart.
	deadline := time.Now().Add(3 * time.Second)
	for !svc.Router().Routable("autofill_remote") {
		if time.Now().After(deadline) {
			t.Fatal("route edit never reached the router")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if rec := do(t, h, http.MethodDelete, "/api/routes/autofill_remote", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete route status = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodDelete, "/api/routes/autofill_remote", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
