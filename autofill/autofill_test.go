package autofill

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	_ "modernc.org/sqlite"
)

func newService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.DBPath = filepath.Join(t.TempDir(), "autofill.db")
	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestService_FillHTMLWithStoredProfile(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	if _, err := svc.PutProfile(ctx, "", []byte(acmeProfile)); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	res, err := svc.FillHTML(ctx, FillRequest{HTML: experienceForm, URL: "https://acme.wd5.myworkdayjobs.com/apply"})
	if err != nil {
		t.Fatalf("FillHTML: %v", err)
	}
	if !res.Report.Success || res.Report.FilledFields != 4 {
		t.Fatalf("report = %+v", res.Report)
	}
	if res.Report.SiteType != "workday" {
		t.Errorf("site type = %q, want detected workday", res.Report.SiteType)
	}
	for _, want := range []string{`value="Acme"`, `value="01/2020"`, `value="Present"`, `value="ada@example.com"`} {
		if !strings.Contains(res.HTML, want) {
			t.Errorf("filled document lacks %s", want)
		}
	}

	entries, err := svc.ListMemory(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	for _, e := range entries {
		got[e.Label] = e.Value
	}
	want := map[string]string{"Company": "Acme", "Start Date": "01/2020", "End Date": "Present", "Email": "ada@example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("memory (-want +got):\n%s", diff)
	}
}

func TestService_InlineProfileOverridesStore(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.FillHTML(context.Background(), FillRequest{
		HTML:    `<form><label for="email">Email</label><input id="email" type="email"></form>`,
		Profile: json.RawMessage(`{"email": "inline@example.com"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.FilledFields != 1 || !strings.Contains(res.HTML, `value="inline@example.com"`) {
		t.Errorf("report = %+v\n%s", res.Report, res.HTML)
	}
}

func TestService_ScanHTML(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.ScanHTML(context.Background(), ScanRequest{HTML: experienceForm})
	if err != nil {
		t.Fatal(err)
	}
	var labels []string
	for _, f := range res.Fields {
		labels = append(labels, f.Label)
	}
	if diff := cmp.Diff([]string{"Company", "Start Date", "End Date", "Email"}, labels); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if _, err := svc.ScanHTML(context.Background(), ScanRequest{HTML: "  "}); err == nil {
		t.Error("empty html should be rejected")
	}
}

func TestService_ForgetMemory(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	svc.Store().Set(ctx, "Email", "a@example.com")
	svc.Store().Set(ctx, "Phone", "555")

	n, err := svc.ForgetMemory(ctx, "Email")
	if err != nil || n != 1 {
		t.Fatalf("forget = %d, %v", n, err)
	}
	if n, _ := svc.ForgetMemory(ctx, "Email"); n != 0 {
		t.Errorf("second forget = %d, want 0", n)
	}
	if n, _ := svc.ForgetMemory(ctx, ""); n != 1 {
		t.Errorf("clear = %d, want 1", n)
	}
}

func TestService_RemoteTierOverHTTP(t *testing.T) {
	var got RemoteRequest
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make(map[string]string)
		for _, f := range got.Fields {
			if f.Label == "Email" {
				out[f.FieldID] = "<b>remote@example.com</b>"
			}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer remote.Close()

	svc := newService(t, &Config{Remote: RemoteConfig{Endpoint: remote.URL, AllowPrivate: true}})
	if !svc.Router().Routable("autofill_remote") {
		t.Fatal("seeded remote route is not routable")
	}

	res, err := svc.FillHTML(context.Background(), FillRequest{
		HTML:    experienceForm,
		Profile: json.RawMessage(acmeProfile),
	})
	if err != nil {
		t.Fatal(err)
	}
	rep := res.Report
	if rep.Tiers.Remote != 1 || rep.Tiers.Local != 3 || rep.FilledFields != 4 {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.Contains(res.HTML, `value="remote@example.com"`) {
		t.Errorf("remote value not sanitised into the document:\n%s", res.HTML)
	}
	if len(got.Fields) != 4 || !strings.Contains(string(got.Profile), "Acme") {
		t.Errorf("remote request = %+v", got)
	}
}

func TestService_RemoteDownFallsBackToLocal(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer remote.Close()

	svc := newService(t, &Config{Remote: RemoteConfig{Endpoint: remote.URL, AllowPrivate: true}})
	res, err := svc.FillHTML(context.Background(), FillRequest{HTML: experienceForm, Profile: json.RawMessage(acmeProfile)})
	if err != nil {
		t.Fatal(err)
	}
	rep := res.Report
	if !rep.Success || rep.FilledFields != 4 || rep.Tiers.Local != 4 {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.Contains(rep.RemoteError, "503") {
		t.Errorf("remote error = %q", rep.RemoteError)
	}
}

func TestService_ResolveServiceServesRemoteContract(t *testing.T) {
	svc := newService(t, nil)
	idx := 0
	company := "company"
	payload, _ := json.Marshal(RemoteRequest{
		Fields: []RemoteField{
			{FieldID: "f1", Label: "Company", Type: "text", ExperienceIndex: &idx, ExperienceFieldType: &company},
			{FieldID: "f2", Label: "Email", Type: "email"},
			{FieldID: "f3", Label: "Favourite colour", Type: "text"},
		},
		Profile: json.RawMessage(acmeProfile),
	})

	resp, err := svc.Router().Call(context.Background(), ResolveService, payload)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var values map[string]string
	if err := json.Unmarshal(resp, &values); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"f1": "Acme", "f2": "ada@example.com"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("values (-want +got):\n%s", diff)
	}
}

func TestService_PutProfileRejectsBadID(t *testing.T) {
	svc := newService(t, nil)
	if _, err := svc.PutProfile(context.Background(), "../etc", []byte(`{}`)); err == nil {
		t.Error("want error for invalid profile id")
	}
}

func TestService_CloseDrainsRouteWatcher(t *testing.T) {
	cfg := &Config{DBPath: filepath.Join(t.TempDir(), "autofill.db"), RouteWatchInterval: 5 * time.Millisecond}
	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-svc.watchDone:
	default:
		t.Fatal("route watcher still running after Close")
	}
}

func TestService_SeedKeepsUnchangedRoute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autofill.db")
	open := func(endpoint string) *Service {
		t.Helper()
		svc, err := New(&Config{DBPath: path, Remote: RemoteConfig{Endpoint: endpoint, AllowPrivate: true}}, nil)
		if err != nil {
			t.Fatal(err)
		}
		return svc
	}
	updatedAt := func(svc *Service) int64 {
		t.Helper()
		var v int64
		if err := svc.Store().DB.QueryRow(`SELECT updated_at FROM routes WHERE service_name = 'autofill_remote'`).Scan(&v); err != nil {
			t.Fatal(err)
		}
		return v
	}

	svc := open("http://127.0.0.1:9/autofill")
	// Pin updated_at so a rewrite of the row is visible without waiting a second.
	db := svc.Store().DB
	if _, err := db.Exec(`DROP TRIGGER trg_routes_updated_at`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE routes SET updated_at = 1`); err != nil {
		t.Fatal(err)
	}
	svc.Close()

	svc = open("http://127.0.0.1:9/autofill")
	if got := updatedAt(svc); got != 1 {
		t.Errorf("identical seed rewrote the route: updated_at = %d", got)
	}
	svc.Close()

	svc = open("http://127.0.0.1:10/autofill")
	defer svc.Close()
	if got := updatedAt(svc); got == 1 {
		t.Error("changed endpoint was not written")
	}
}
