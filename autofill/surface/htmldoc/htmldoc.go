// CLAUDE:SUMMARY Static HTML Form Surface over golang.org/x/net/html: scan controls, resolve label context, write values, record events, render.
// Package htmldoc implements surface.Surface over a parsed HTML document, so
// the engine can scan and fill a saved application form without a browser.
//
//	doc, err := htmldoc.Parse(r, htmldoc.WithScope("form#apply"))
//	report := engine.Run(ctx, doc, autofill.RunOptions{})
//	doc.Render(w)
//
// Events are not executed; they are recorded per control and exposed through
// Events for inspection.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/autofill/autofill/surface"
)

// identifying attributes copied into surface.Control.Attrs.
var controlAttrs = []string{"name", "id", "class", "placeholder", "aria-label", "data-field-name", "data-name"}

// A static document has no layout; display:none is the closest signal to
// "no layout box".
var hiddenStyle = regexp.MustCompile(`(?i)display\s*:\s*none`)

// Document is a parsed HTML form surface. Safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	scope    string
	controls []*html.Node
	events   map[surface.Ref][]surface.Event
}

// Option configures Parse.
type Option func(*Document)

// WithScope restricts ListControls to controls under elements matching the
// selector (see Select for the supported syntax).
func WithScope(selector string) Option {
	return func(d *Document) { d.scope = strings.TrimSpace(selector) }
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	d := &Document{root: root, events: make(map[surface.Ref][]surface.Event)}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// ListControls implements surface.Surface.
func (d *Document) ListControls(ctx context.Context) ([]surface.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	roots := []*html.Node{d.root}
	if d.scope != "" {
		roots = Select(d.root, d.scope)
		if len(roots) == 0 {
			return nil, fmt.Errorf("htmldoc: scope %q matched nothing", d.scope)
		}
	}

	seen := make(map[*html.Node]bool)
	d.controls = d.controls[:0]
	for _, root := range roots {
		walk(root, func(n *html.Node) {
			if isControl(n) && !seen[n] {
				seen[n] = true
				d.controls = append(d.controls, n)
			}
		})
	}
	// Nested scope roots can interleave; keep document order.
	if len(roots) > 1 {
		order := documentOrder(d.root)
		sortByOrder(d.controls, order)
	}

	refs := make([]surface.Ref, len(d.controls))
	for i := range d.controls {
		refs[i] = surface.Ref(i)
	}
	return refs, nil
}

// ReadAttributes implements surface.Surface.
func (d *Document) ReadAttributes(ctx context.Context, ref surface.Ref) (surface.Control, error) {
	if err := ctx.Err(); err != nil {
		return surface.Control{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.node(ref)
	if err != nil {
		return surface.Control{}, err
	}

	c := surface.Control{
		Ref:   ref,
		Tag:   n.Data,
		Attrs: make(map[string]string),
	}
	if n.DataAtom == atom.Input {
		c.Type = strings.ToLower(strings.TrimSpace(getAttr(n, "type")))
	}
	for _, k := range controlAttrs {
		if v, ok := lookupAttr(n, k); ok {
			c.Attrs[k] = v
		}
	}

	c.Visible = !isHidden(n)
	c.Disabled = isDisabled(n)
	_, c.ReadOnly = lookupAttr(n, "readonly")

	if id := getAttr(n, "id"); id != "" {
		if lbl := findLabelFor(d.root, id); lbl != nil {
			c.Label.ForLabel = strings.TrimSpace(textOf(lbl, nil))
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			c.Label.WrappingLabel = strings.TrimSpace(textOf(p, n))
			break
		}
	}
	if n.Parent != nil {
		c.Label.ContainerText = textNodes(n.Parent, n)
	}

	if n.DataAtom == atom.Select {
		for _, opt := range options(n) {
			c.Options = append(c.Options, surface.Option{
				Value: optionValue(opt),
				Text:  strings.TrimSpace(textOf(opt, nil)),
			})
		}
	}
	return c, nil
}

// WriteValue implements surface.Surface.
func (d *Document) WriteValue(ctx context.Context, ref surface.Ref, value string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.node(ref)
	if err != nil {
		return "", err
	}

	switch n.DataAtom {
	case atom.Textarea:
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		return value, nil
	case atom.Select:
		var picked *html.Node
		for _, opt := range options(n) {
			removeAttr(opt, "selected")
			if picked == nil && optionValue(opt) == value {
				picked = opt
			}
		}
		if picked == nil {
			return "", nil
		}
		setAttr(picked, "selected", "")
		return value, nil
	default:
		setAttr(n, "value", value)
		return value, nil
	}
}

// Dispatch implements surface.Surface by recording the events.
func (d *Document) Dispatch(ctx context.Context, ref surface.Ref, events ...surface.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.node(ref); err != nil {
		return err
	}
	d.events[ref] = append(d.events[ref], events...)
	return nil
}

// Events returns the events dispatched on ref so far.
func (d *Document) Events(ref surface.Ref) []surface.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]surface.Event(nil), d.events[ref]...)
}

// Value returns the current value of the control behind ref.
func (d *Document) Value(ref surface.Ref) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.node(ref)
	if err != nil {
		return ""
	}
	switch n.DataAtom {
	case atom.Textarea:
		return textOf(n, nil)
	case atom.Select:
		for _, opt := range options(n) {
			if _, ok := lookupAttr(opt, "selected"); ok {
				return optionValue(opt)
			}
		}
		return ""
	default:
		return getAttr(n, "value")
	}
}

// Render writes the (possibly filled) document.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// HTML returns the rendered document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", fmt.Errorf("htmldoc: render: %w", err)
	}
	return buf.String(), nil
}

func (d *Document) node(ref surface.Ref) (*html.Node, error) {
	if int(ref) < 0 || int(ref) >= len(d.controls) {
		return nil, fmt.Errorf("htmldoc: unknown control ref %d", ref)
	}
	return d.controls[ref], nil
}

func isControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input, atom.Textarea, atom.Select:
		return true
	}
	return false
}

func isHidden(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := lookupAttr(p, "hidden"); ok {
			return true
		}
		if hiddenStyle.MatchString(getAttr(p, "style")) {
			return true
		}
		switch p.DataAtom {
		case atom.Template, atom.Noscript:
			return true
		}
	}
	return false
}

func isDisabled(n *html.Node) bool {
	if _, ok := lookupAttr(n, "disabled"); ok {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Fieldset {
			if _, ok := lookupAttr(p, "disabled"); ok {
				return true
			}
		}
	}
	return false
}

func findLabelFor(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.DataAtom == atom.Label && getAttr(n, "for") == id {
			found = n
		}
	})
	return found
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	walk(sel, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			out = append(out, n)
		}
	})
	return out
}

// optionValue follows the browser rule: the value attribute, else the text.
func optionValue(opt *html.Node) string {
	if v, ok := lookupAttr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(textOf(opt, nil))
}
