package writer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/autofill/autofill/internal/classify"
	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/surface"
	"github.com/hazyhaar/autofill/autofill/surface/htmldoc"
	"github.com/hazyhaar/autofill/kit"
)

type memory struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (m *memory) Set(_ context.Context, label, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[label] = value
	return nil
}

func parse(t *testing.T, page string) (*htmldoc.Document, []surface.Ref) {
	t.Helper()
	doc, err := htmldoc.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	refs, err := doc.ListControls(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return doc, refs
}

func TestAdapt(t *testing.T) {
	cases := []struct {
		typ  field.ControlType
		in   string
		want string
	}{
		{field.Date, "03/2022", "2022-03-01"},
		{field.Month, "03/2022", "2022-03"},
		{field.Text, "03/2022", "03/2022"},
		{field.Date, "Present", "Present"},
		{field.Month, "3/2022", "3/2022"},
	}
	for _, tc := range cases {
		if got := Adapt(tc.typ, tc.in); got != tc.want {
			t.Errorf("Adapt(%s, %q) = %q, want %q", tc.typ, tc.in, got, tc.want)
		}
	}
}

func TestWrite_TextEventSequence(t *testing.T) {
	doc, refs := parse(t, `<input name="a"><input type="month" name="b"><input type="date" name="c">`)
	fields := []*field.Descriptor{
		{FieldID: "a", Ref: refs[0], Label: "City", ControlType: field.Text},
		{FieldID: "b", Ref: refs[1], Label: "Start", ControlType: field.Month},
		{FieldID: "c", Ref: refs[2], Label: "End", ControlType: field.Date},
	}
	mem := &memory{values: map[string]string{}}
	out, err := Write(context.Background(), doc, fields, map[string]string{"a": "Paris", "b": "03/2022", "c": "03/2022"}, Options{Memory: mem})
	if err != nil {
		t.Fatal(err)
	}
	if out.Filled != 3 {
		t.Fatalf("filled = %d", out.Filled)
	}
	if got := surface.EventLog(doc.Events(refs[0])); got != "focus keydown(P) keypress(P) input keyup(s) change blur" {
		t.Errorf("events = %q", got)
	}
	if doc.Value(refs[1]) != "2022-03" || doc.Value(refs[2]) != "2022-03-01" {
		t.Errorf("values = %q, %q", doc.Value(refs[1]), doc.Value(refs[2]))
	}
	want := map[string]string{"City": "Paris", "Start": "2022-03", "End": "2022-03-01"}
	if diff := cmp.Diff(want, mem.values); diff != "" {
		t.Errorf("memory (-want +got):\n%s", diff)
	}
}

func TestWrite_Select(t *testing.T) {
	doc, refs := parse(t, `<select name="country"><option value="">-</option><option value="de">Germany</option><option value="fr"> France </option></select>`)
	f := &field.Descriptor{FieldID: "s", Ref: refs[0], Label: "Country", ControlType: field.Select}

	out, _ := Write(context.Background(), doc, []*field.Descriptor{f}, map[string]string{"s": "france"}, Options{})
	if out.Filled != 1 || doc.Value(refs[0]) != "fr" {
		t.Errorf("filled=%d value=%q", out.Filled, doc.Value(refs[0]))
	}
	if got := surface.EventLog(doc.Events(refs[0])); got != "focus change blur" {
		t.Errorf("events = %q", got)
	}

	out, _ = Write(context.Background(), doc, []*field.Descriptor{f}, map[string]string{"s": "de"}, Options{})
	if out.Filled != 1 || doc.Value(refs[0]) != "de" {
		t.Errorf("filled=%d value=%q", out.Filled, doc.Value(refs[0]))
	}

	// No matching option still counts, as a browser would report it.
	out, _ = Write(context.Background(), doc, []*field.Descriptor{f}, map[string]string{"s": "Atlantis"}, Options{})
	if out.Filled != 1 {
		t.Errorf("filled=%d", out.Filled)
	}
}

func TestWrite_DuplicateSlotSkipped(t *testing.T) {
	doc, refs := parse(t, `<input name="a"><input name="b"><input name="c">`)
	tag := func() *field.Tag { return &field.Tag{Subfield: classify.Company, Index: 0} }
	fields := []*field.Descriptor{
		{FieldID: "a", Ref: refs[0], Label: "Company", ControlType: field.Text, Experience: tag()},
		{FieldID: "b", Ref: refs[1], Label: "Company name", ControlType: field.Text, Experience: tag()},
		{FieldID: "c", Ref: refs[2], Label: "Employer", ControlType: field.Text, Experience: &field.Tag{Subfield: classify.Company, Index: 1}},
	}
	out, err := Write(context.Background(), doc, fields, map[string]string{"a": "Acme", "b": "Acme Corp", "c": "Initech"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Filled != 2 || out.Duplicates != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if doc.Value(refs[1]) != "" {
		t.Errorf("duplicate slot written: %q", doc.Value(refs[1]))
	}
}

func TestWrite_SkipsBlankValues(t *testing.T) {
	doc, refs := parse(t, `<input name="a"><input name="b"><input name="c">`)
	fields := []*field.Descriptor{
		{FieldID: "a", Ref: refs[0], Label: "A", ControlType: field.Text},
		{FieldID: "b", Ref: refs[1], Label: "B", ControlType: field.Text},
		{FieldID: "c", Ref: refs[2], Label: "C", ControlType: field.Text},
	}
	out, _ := Write(context.Background(), doc, fields, map[string]string{"a": "  ", "b": ""}, Options{})
	if out.Filled != 0 || len(doc.Events(refs[0])) != 0 {
		t.Errorf("outcome = %+v", out)
	}
}

type failing struct {
	surface.Surface
	bad surface.Ref
}

func (f failing) WriteValue(ctx context.Context, ref surface.Ref, v string) (string, error) {
	if ref == f.bad {
		return "", errors.New("element detached")
	}
	return f.Surface.WriteValue(ctx, ref, v)
}

func TestWrite_SurfaceErrorSkipsControl(t *testing.T) {
	doc, refs := parse(t, `<input name="a"><input name="b">`)
	tag := func() *field.Tag { return &field.Tag{Subfield: classify.Company, Index: 0} }
	fields := []*field.Descriptor{
		{FieldID: "a", Ref: refs[0], Label: "Company", ControlType: field.Text, Experience: tag()},
		{FieldID: "b", Ref: refs[1], Label: "Employer", ControlType: field.Text, Experience: tag()},
	}
	mem := &memory{values: map[string]string{}, err: errors.New("disk full")}
	out, err := Write(context.Background(), failing{Surface: doc, bad: refs[0]}, fields, map[string]string{"a": "Acme", "b": "Acme"}, Options{Memory: mem})
	if err != nil {
		t.Fatal(err)
	}
	// The failed write does not claim the slot, so the second field fills it.
	if out.Filled != 1 || out.Failed != 1 || out.Duplicates != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if doc.Value(refs[1]) != "Acme" {
		t.Errorf("value = %q", doc.Value(refs[1]))
	}
}

func TestWrite_CancelledContext(t *testing.T) {
	doc, refs := parse(t, `<input name="a">`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Write(ctx, doc, []*field.Descriptor{{FieldID: "a", Ref: refs[0], Label: "A"}}, map[string]string{"a": "x"}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestWrite_LogsCarryRunID(t *testing.T) {
	doc, refs := parse(t, `<input name="a">`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := kit.WithRunID(context.Background(), "run_7")

	fields := []*field.Descriptor{{FieldID: "a", Ref: refs[0], Label: "Company", ControlType: field.Text}}
	if _, err := Write(ctx, failing{Surface: doc, bad: refs[0]}, fields, map[string]string{"a": "Acme"}, Options{Logger: logger}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"run_id":"run_7"`) {
		t.Fatalf("fill failure log lacks run id: %s", buf.String())
	}
}
