package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/autofill/dbopen"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func staticFactory(body string, builds *int32, closed *bool) TransportFactory {
	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		if builds != nil {
			atomic.AddInt32(builds, 1)
		}
		h := func(ctx context.Context, payload []byte) ([]byte, error) {
			return []byte(body + endpoint), nil
		}
		var cl func()
		if closed != nil {
			cl = func() { *closed = true }
		}
		return h, cl, nil
	}
}

func TestRegisterLocal_and_Call(t *testing.T) {
	r := New()
	r.RegisterLocal("autofill_resolve", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	resp, err := r.Call(context.Background(), "autofill_resolve", []byte(`{"fields":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp) != `{"fields":[]}` {
		t.Fatalf("got %q", resp)
	}
	if !r.Routable("autofill_resolve") {
		t.Fatal("expected local service to be routable")
	}
}

func TestCall_ServiceNotFound(t *testing.T) {
	r := New()
	if r.Routable("autofill_remote") {
		t.Fatal("unexpected routable service")
	}
	_, err := r.Call(context.Background(), "autofill_remote", nil)
	var snf *ErrServiceNotFound
	if !errors.As(err, &snf) {
		t.Fatalf("expected ErrServiceNotFound, got %T: %v", err, err)
	}
	if snf.Service != "autofill_remote" {
		t.Fatalf("got service %q", snf.Service)
	}
}

func TestReload_NoopStrategy(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	r.RegisterLocal("autofill_remote", func(ctx context.Context, payload []byte) ([]byte, error) {
		t.Fatal("local handler should not be called for noop")
		return nil, nil
	})

	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy) VALUES ('autofill_remote', 'noop')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}

	resp, err := r.Call(context.Background(), "autofill_remote", []byte("{}"))
	if err != nil {
		t.Fatalf("noop should succeed, got: %v", err)
	}
	if resp != nil {
		t.Fatalf("noop should return nil, got %q", resp)
	}
}

func TestReload_RemoteOverridesLocal(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	r.RegisterLocal("autofill_remote", func(ctx context.Context, payload []byte) ([]byte, error) {
		return []byte("local"), nil
	})
	r.RegisterTransport("http", staticFactory("remote:", nil, nil))

	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('autofill_remote', 'http', 'http://resolver')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}

	resp, err := r.Call(context.Background(), "autofill_remote", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "remote:http://resolver" {
		t.Fatalf("got %q", resp)
	}
}

func TestReload_UnchangedRoutePreservesHandler(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	var builds int32
	r.RegisterTransport("http", staticFactory("", &builds, nil))

	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('svc', 'http', 'http://a')`); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := r.Reload(context.Background(), db); err != nil {
			t.Fatal(err)
		}
	}
	if c := atomic.LoadInt32(&builds); c != 1 {
		t.Fatalf("expected 1 build, got %d", c)
	}
}

func TestReload_ChangedRouteRebuildsHandler(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	var builds int32
	closed := false
	r.RegisterTransport("http", staticFactory("", &builds, &closed))

	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('svc', 'http', 'http://old')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE routes SET endpoint='http://new' WHERE service_name='svc'`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}

	if c := atomic.LoadInt32(&builds); c != 2 {
		t.Fatalf("expected 2 builds, got %d", c)
	}
	if !closed {
		t.Fatal("old handler close function not called")
	}
	resp, err := r.Call(context.Background(), "svc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "http://new" {
		t.Fatalf("got %q", resp)
	}
}

func TestReload_RemovedRouteClosesHandler(t *testing.T) {
	db := setupTestDB(t)
	r := New()
	closed := false
	r.RegisterTransport("http", staticFactory("", nil, &closed))

	if _, err := db.Exec(`INSERT INTO routes (service_name, strategy, endpoint) VALUES ('svc', 'http', 'http://x')`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`DELETE FROM routes WHERE service_name='svc'`); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Fatal("close not called for removed route")
	}
	if r.Routable("svc") {
		t.Fatal("removed route still routable")
	}
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(
		WithBreakerThreshold(3),
		WithBreakerResetTimeout(100*time.Millisecond),
		WithBreakerHalfOpenMax(1),
		WithBreakerClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("should not allow when open")
	}

	now = now.Add(200 * time.Millisecond)
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("state = %s, want half_open", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Fatalf("state = %s, want closed", cb.State())
	}
}

func TestWithCircuitBreaker_Middleware(t *testing.T) {
	cb := NewCircuitBreaker(WithBreakerThreshold(1))
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, errors.New("resolver down")
	}
	wrapped := WithCircuitBreaker(cb, "autofill_remote")(base)

	if _, err := wrapped(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	_, err := wrapped(context.Background(), nil)
	var eco *ErrCircuitOpen
	if !errors.As(err, &eco) {
		t.Fatalf("expected ErrCircuitOpen, got %T: %v", err, err)
	}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return []byte("ok"), nil
	}
	resp, err := WithRetry(3, time.Millisecond, nil)(base)(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if string(resp) != "ok" || attempts != 3 {
		t.Fatalf("got %q after %d attempts", resp, attempts)
	}
}

func TestWithRetry_SkipsClientErrors(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		attempts++
		return nil, &ErrRemoteStatus{Endpoint: "http://x", Status: http.StatusBadRequest}
	}
	if _, err := WithRetry(3, time.Millisecond, nil)(base)(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) HandlerMiddleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				order = append(order, name+"-before")
				resp, err := next(ctx, payload)
				order = append(order, name+"-after")
				return resp, err
			}
		}
	}
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	}

	Chain(mw("mw1"), mw("mw2"))(base)(context.Background(), nil)

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("got %v, want %v", order, expected)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("at index %d: got %q, want %q", i, order[i], v)
		}
	}
}

func TestRecovery(t *testing.T) {
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		panic("boom")
	}
	_, err := Recovery(slog.Default())(base)(context.Background(), nil)
	var ep *ErrPanic
	if !errors.As(err, &ep) {
		t.Fatalf("expected ErrPanic, got %T: %v", err, err)
	}
}

func TestHTTPFactory_RejectsPrivateURL(t *testing.T) {
	f := HTTPFactory()
	if _, _, err := f("http://127.0.0.1:8000/autofill", nil); err == nil {
		t.Fatal("expected SSRF error for loopback URL")
	}
	if _, _, err := HTTPFactory(WithAllowPrivate())("ftp://127.0.0.1/", nil); err == nil {
		t.Fatal("expected scheme error even with private addresses allowed")
	}
}

func TestHTTPFactory_PostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"echo":` + string(body) + `}`))
	}))
	defer srv.Close()

	h, closeFn, err := HTTPFactory(WithAllowPrivate())(srv.URL, json.RawMessage(`{"timeout_ms": 2000}`))
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	resp, err := h(context.Background(), []byte(`1`))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != `{"echo":1}` {
		t.Fatalf("got %q", resp)
	}
}

func TestHTTPFactory_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h, _, err := HTTPFactory(WithAllowPrivate())(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = h(context.Background(), []byte(`{}`))
	var st *ErrRemoteStatus
	if !errors.As(err, &st) || st.Status != http.StatusInternalServerError {
		t.Fatalf("expected ErrRemoteStatus 500, got %v", err)
	}
}

func TestAdmin_UpsertAndList(t *testing.T) {
	db := setupTestDB(t)
	a := NewAdmin(db)
	ctx := context.Background()

	if err := a.UpsertRoute(ctx, "autofill_remote", "http", "http://localhost:8000/autofill", nil); err != nil {
		t.Fatal(err)
	}
	if err := a.UpsertRoute(ctx, "autofill_remote", "noop", "", nil); err != nil {
		t.Fatal(err)
	}
	got, err := a.GetRoute(ctx, "autofill_remote")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Strategy != "noop" {
		t.Fatalf("got %+v, want noop route", got)
	}
	routes, err := a.ListRoutes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 {
		t.Fatalf("len(routes) = %d, want 1", len(routes))
	}
	if err := a.DeleteRoute(ctx, "autofill_remote"); err != nil {
		t.Fatal(err)
	}
	if got, _ := a.GetRoute(ctx, "autofill_remote"); got != nil {
		t.Fatalf("route still present: %+v", got)
	}
	var nf *ErrServiceNotFound
	if err := a.DeleteRoute(ctx, "autofill_remote"); !errors.As(err, &nf) {
		t.Fatalf("delete of missing route: got %v, want ErrServiceNotFound", err)
	}
	if err := a.UpsertRoute(ctx, "bad name", "http", "", nil); err == nil {
		t.Fatal("expected identifier error")
	}
}
