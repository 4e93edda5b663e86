// CLAUDE:SUMMARY Form Surface abstraction: list controls, read their attributes and label context, write values, dispatch input events.
// Package surface defines the Form Surface, the only way the autofill engine
// sees or touches a form. Implementations exist for static HTML documents
// (surface/htmldoc) and for live Chrome pages (internal/browser).
package surface

import (
	"context"
	"strings"
)

// Ref identifies a control within one Surface. Refs are only meaningful to
// the Surface that returned them and only until the document changes.
type Ref int

// Control is everything the engine needs to know about one form control.
type Control struct {
	Ref  Ref
	Tag  string // "input", "textarea" or "select"
	Type string // lowercased type attribute, "" when absent

	// Attrs holds the identifying attributes: name, id, class, placeholder,
	// aria-label, data-field-name, data-name. Missing attributes are absent.
	Attrs map[string]string

	Visible  bool
	Disabled bool
	ReadOnly bool

	Label   LabelContext
	Options []Option // select only, document order
}

// Attr returns the named attribute or "".
func (c Control) Attr(name string) string {
	return c.Attrs[name]
}

// LabelContext carries the text around a control that can serve as its label.
type LabelContext struct {
	ForLabel      string   // text of the <label for=id> pointing at the control
	WrappingLabel string   // text of the nearest ancestor <label>
	ContainerText []string // trimmed non-empty text nodes under the parent element, document order
}

// Option is one <option> of a select.
type Option struct {
	Value string
	Text  string
}

// EventKind names a DOM event the writer can dispatch.
type EventKind string

const (
	Focus    EventKind = "focus"
	Blur     EventKind = "blur"
	KeyDown  EventKind = "keydown"
	KeyPress EventKind = "keypress"
	KeyUp    EventKind = "keyup"
	Input    EventKind = "input"
	Change   EventKind = "change"
)

// Event is a synthetic event. Key is set for keyboard events only.
type Event struct {
	Kind EventKind
	Key  string
}

func (e Event) String() string {
	if e.Key == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + "(" + e.Key + ")"
}

// Surface is a form the engine can scan and fill.
type Surface interface {
	// ListControls returns every input, textarea and select in document order.
	ListControls(ctx context.Context) ([]Ref, error)

	// ReadAttributes describes the control behind ref.
	ReadAttributes(ctx context.Context, ref Ref) (Control, error)

	// WriteValue assigns value and returns what the control reports back.
	// A select given a value none of its options carry reports "".
	WriteValue(ctx context.Context, ref Ref, value string) (string, error)

	// Dispatch fires events on the control, in order.
	Dispatch(ctx context.Context, ref Ref, events ...Event) error
}

// EventLog renders a dispatched sequence as "focus keydown(A) ..." for logs
// and tests.
func EventLog(events []Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}
