package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/autofill/autofill/internal/classify"
	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/profile"
	"github.com/hazyhaar/autofill/connectivity"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (m *memStore) Get(_ context.Context, label string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[label]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, label, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[label] = value
	return nil
}

type fakeCaller struct {
	mu       sync.Mutex
	calls    int
	requests []RemoteRequest
	respond  func(RemoteRequest) ([]byte, error)
}

func (c *fakeCaller) Call(_ context.Context, service string, payload []byte) ([]byte, error) {
	var req RemoteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.calls++
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.respond(req)
}

type routableCaller struct {
	*fakeCaller
	ok bool
}

func (c routableCaller) Routable(string) bool { return c.ok }

func personalField(id, label string) *field.Descriptor {
	return &field.Descriptor{FieldID: id, Label: label, ControlType: field.Text, Personal: classify.Personal(label)}
}

func expField(id, label, sub string, idx int) *field.Descriptor {
	d := personalField(id, label)
	d.Experience = &field.Tag{Subfield: sub, Index: idx}
	return d
}

func acme() *profile.Profile {
	p, err := profile.Parse([]byte(`{
		"fullName": "Ada Lovelace",
		"email": "ada@example.com",
		"skills": ["Go", "SQL"],
		"education": [{"school": "UCL", "degree": "BSc", "field": "Mathematics"}],
		"experience": [{"company": "Acme", "position": "Engineer", "startDate": "2020-01-01", "endDate": null, "current": true}],
		"projects": [{"title": "Engine", "tools": ["rod", "sqlite"]}],
		"certifications": [{"name": "CKA", "organization": "CNCF", "date": "2023-06-15"}]
	}`))
	if err != nil {
		panic(err)
	}
	return p
}

func TestResolve_MemoryHitsNotSentRemote(t *testing.T) {
	mem := &memStore{values: map[string]string{"Email": "cached@example.com", "Phone": "  "}}
	caller := &fakeCaller{respond: func(RemoteRequest) ([]byte, error) { return []byte(`{}`), nil }}
	r := New(mem, caller, Config{}, nil)

	fields := []*field.Descriptor{personalField("e", "Email"), personalField("p", "Phone"), personalField("n", "Full name")}
	res, stats := r.Resolve(context.Background(), fields, acme())

	if res["e"] != "cached@example.com" || stats.Memory != 1 {
		t.Errorf("memory tier: res=%v stats=%+v", res, stats)
	}
	if len(caller.requests) != 1 {
		t.Fatalf("remote calls = %d, want 1", len(caller.requests))
	}
	var sent []string
	for _, f := range caller.requests[0].Fields {
		sent = append(sent, f.FieldID)
	}
	if diff := cmp.Diff([]string{"p", "n"}, sent); diff != "" {
		t.Errorf("remote fields (-want +got):\n%s", diff)
	}
	if res["n"] != "Ada Lovelace" || stats.Local != 1 {
		t.Errorf("local fallthrough: res=%v stats=%+v", res, stats)
	}
}

func TestResolve_MemoryErrorIsMiss(t *testing.T) {
	mem := &memStore{err: errors.New("db locked")}
	r := New(mem, nil, Config{}, nil)
	res, stats := r.Resolve(context.Background(), []*field.Descriptor{personalField("e", "Email")}, acme())
	if res["e"] != "ada@example.com" || stats.Memory != 0 || stats.Local != 1 {
		t.Errorf("res=%v stats=%+v", res, stats)
	}
	if !stats.RemoteSkipped {
		t.Error("nil caller should skip the remote tier")
	}
}

func TestResolve_RemoteErrorFallsBackLocal(t *testing.T) {
	caller := &fakeCaller{respond: func(RemoteRequest) ([]byte, error) { return nil, errors.New("connection refused") }}
	r := New(nil, caller, Config{}, nil)

	fields := []*field.Descriptor{
		expField("c", "Company", classify.Company, 0),
		expField("s", "Start Date", classify.StartDate, 0),
		personalField("x", "Favourite colour"),
	}
	res, stats := r.Resolve(context.Background(), fields, acme())

	want := Result{"c": "Acme", "s": "01/2020"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if !strings.Contains(stats.RemoteError, "connection refused") || stats.Local != 2 || stats.Remote != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestResolve_RemoteValues(t *testing.T) {
	caller := &fakeCaller{respond: func(req RemoteRequest) ([]byte, error) {
		return []byte(`{
			"a": "<b>Ada</b> &amp; co ",
			"b": 42,
			"c": "   ",
			"z": "not requested",
			"d": true
		}`), nil
	}}
	r := New(nil, caller, Config{}, nil)

	fields := []*field.Descriptor{
		personalField("a", "Full name"),
		personalField("b", "Years of experience"),
		personalField("c", "Email"),
		personalField("d", "Phone"),
	}
	res, stats := r.Resolve(context.Background(), fields, acme())

	want := Result{"a": "Ada & co", "b": "42", "c": "ada@example.com"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if stats.Remote != 2 || stats.Local != 1 || stats.RemoteError != "" {
		t.Errorf("stats = %+v", stats)
	}

	req := caller.requests[0]
	var doc map[string]any
	if err := json.Unmarshal(req.Profile, &doc); err != nil || doc["fullName"] != "Ada Lovelace" {
		t.Errorf("profile not forwarded: %s", req.Profile)
	}
}

func TestResolve_RemoteMarkupStripped(t *testing.T) {
	caller := &fakeCaller{respond: func(req RemoteRequest) ([]byte, error) {
		return []byte(`{"a": "C++ <templates>", "b": "<templates>", "c": "3 < 5"}`), nil
	}}
	var buf bytes.Buffer
	r := New(nil, caller, Config{}, slog.New(slog.NewTextHandler(&buf, nil)))

	fields := []*field.Descriptor{
		personalField("a", "Skills"),
		personalField("b", "Email"),
		personalField("c", "Summary"),
	}
	res, stats := r.Resolve(context.Background(), fields, acme())

	// Tag-like text is dropped; a value left empty resolves locally.
	want := Result{"a": "C++", "b": "ada@example.com", "c": "3 < 5"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if stats.Remote != 2 || stats.Local != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if n := strings.Count(buf.String(), "markup removed"); n != 2 {
		t.Errorf("markup warnings = %d, want 2:\n%s", n, buf.String())
	}
}

func TestResolve_RemotePayloadShape(t *testing.T) {
	var raw []byte
	caller := &fakeCaller{respond: func(req RemoteRequest) ([]byte, error) {
		raw, _ = json.Marshal(req.Fields[0])
		return []byte(`null`), nil
	}}
	r := New(nil, caller, Config{}, nil)

	f := expField("c-1", "Company", classify.Company, 2)
	f.Raw = field.Raw{Name: "exp_company_2", Placeholder: "Acme Inc"}
	_, stats := r.Resolve(context.Background(), []*field.Descriptor{f}, nil)

	want := `{"field_id":"c-1","label":"Company","type":"text","name":"exp_company_2","placeholder":"Acme Inc",` +
		`"experienceIndex":2,"experienceFieldType":"company","projectIndex":null,"projectFieldType":null,` +
		`"licenseIndex":null,"licenseFieldType":null}`
	if string(raw) != want {
		t.Errorf("payload\n got %s\nwant %s", raw, want)
	}
	if !strings.Contains(stats.RemoteError, ErrUnusable.Error()) {
		t.Errorf("null response should be unusable, stats = %+v", stats)
	}
	if string(caller.requests[0].Profile) != `{}` {
		t.Errorf("absent profile sent as %s", caller.requests[0].Profile)
	}
}

func TestResolve_NotRoutableSkipsRemote(t *testing.T) {
	inner := &fakeCaller{respond: func(RemoteRequest) ([]byte, error) { return []byte(`{}`), nil }}
	r := New(nil, routableCaller{fakeCaller: inner, ok: false}, Config{}, nil)

	res, stats := r.Resolve(context.Background(), []*field.Descriptor{personalField("e", "Email")}, acme())
	if inner.calls != 0 {
		t.Errorf("remote called %d times", inner.calls)
	}
	if !stats.RemoteSkipped || res["e"] != "ada@example.com" {
		t.Errorf("res=%v stats=%+v", res, stats)
	}
}

func TestResolve_BreakerOpensAfterFailures(t *testing.T) {
	caller := &fakeCaller{respond: func(RemoteRequest) ([]byte, error) {
		return nil, &connectivity.ErrRemoteStatus{Endpoint: "x", Status: 503}
	}}
	r := New(nil, caller, Config{BreakerThreshold: 2, BreakerReset: time.Hour}, nil)
	fields := []*field.Descriptor{personalField("e", "Email")}

	for range 3 {
		r.Resolve(context.Background(), fields, acme())
	}
	if caller.calls != 2 {
		t.Errorf("calls = %d, want 2", caller.calls)
	}
	if r.Breaker().State() != connectivity.BreakerOpen {
		t.Errorf("breaker = %v", r.Breaker().State())
	}
	_, stats := r.Resolve(context.Background(), fields, acme())
	if !strings.Contains(stats.RemoteError, "circuit open") {
		t.Errorf("RemoteError = %q", stats.RemoteError)
	}
}

func TestResolve_TimeoutBoundsRemote(t *testing.T) {
	caller := &fakeCaller{}
	caller.respond = func(RemoteRequest) ([]byte, error) {
		time.Sleep(200 * time.Millisecond)
		return []byte(`{"e":"late@example.com"}`), nil
	}
	r := New(nil, ctxCaller{caller}, Config{Timeout: 20 * time.Millisecond}, nil)

	res, stats := r.Resolve(context.Background(), []*field.Descriptor{personalField("e", "Email")}, acme())
	if res["e"] != "ada@example.com" || stats.RemoteError == "" {
		t.Errorf("res=%v stats=%+v", res, stats)
	}
}

// ctxCaller honours cancellation the way the HTTP transport does.
type ctxCaller struct{ *fakeCaller }

func (c ctxCaller) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	type out struct {
		b   []byte
		err error
	}
	ch := make(chan out, 1)
	go func() {
		b, err := c.fakeCaller.Call(ctx, service, payload)
		ch <- out{b, err}
	}()
	select {
	case o := <-ch:
		return o.b, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
