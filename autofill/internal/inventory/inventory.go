// CLAUDE:SUMMARY Field inventory builder: enumerate eligible controls, resolve labels, classify against every table, assign repeated-entry indices.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/autofill/autofill/internal/classify"
	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/internal/label"
	"github.com/hazyhaar/autofill/autofill/surface"
	"github.com/hazyhaar/autofill/idgen"
)

// Options configures Build.
type Options struct {
	// NewID generates the random field id suffix. Defaults to NanoID(9).
	NewID  idgen.Generator
	Logger *slog.Logger
}

// Skipped counts controls left out of an inventory, by reason.
type Skipped struct {
	Ineligible int `json:"ineligible"`
	Hidden     int `json:"hidden"`
	Disabled   int `json:"disabled"`
	ReadOnly   int `json:"read_only"`
	NoLabel    int `json:"no_label"`
	ReadError  int `json:"read_error"`
}

// Inventory is the result of one scan.
type Inventory struct {
	Fields   []*field.Descriptor
	Counters *Counters
	Skipped  Skipped
}

// Build scans s and returns one descriptor per eligible, labelled control in
// document order. Counters may be nil; the counters used are returned in the
// Inventory. A ListControls error is fatal; a per-control read error only
// drops that control.
func Build(ctx context.Context, s surface.Surface, counters *Counters, opts Options) (*Inventory, error) {
	if counters == nil {
		counters = NewCounters()
	}
	if opts.NewID == nil {
		opts.NewID = idgen.NanoID(9)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	refs, err := s.ListControls(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: list controls: %w", err)
	}

	inv := &Inventory{Counters: counters}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("inventory: %w", err)
		}
		c, err := s.ReadAttributes(ctx, ref)
		if err != nil {
			inv.Skipped.ReadError++
			logger.Warn("inventory: read control", "ref", ref, "error", err)
			continue
		}

		typ, ok := field.ControlTypeOf(c.Tag, c.Type)
		switch {
		case !ok:
			inv.Skipped.Ineligible++
			continue
		case !c.Visible:
			inv.Skipped.Hidden++
			continue
		case c.Disabled:
			inv.Skipped.Disabled++
			continue
		case c.ReadOnly:
			inv.Skipped.ReadOnly++
			continue
		}

		lbl := label.Resolve(c)
		if !label.Usable(lbl) {
			inv.Skipped.NoLabel++
			logger.Debug("inventory: no usable label", "ref", ref, "name", c.Attr("name"))
			continue
		}

		d := describe(c, typ, lbl, counters, opts.NewID)
		if !d.Classified() {
			logger.Debug("inventory: unclassified", "label", lbl, "field_id", d.FieldID)
		}
		inv.Fields = append(inv.Fields, d)
	}

	logger.Debug("inventory: built", "fields", len(inv.Fields), "controls", len(refs))
	return inv, nil
}

func describe(c surface.Control, typ field.ControlType, lbl string, counters *Counters, newID idgen.Generator) *field.Descriptor {
	raw := field.Raw{
		Name:          c.Attr("name"),
		ID:            c.Attr("id"),
		Placeholder:   c.Attr("placeholder"),
		Class:         c.Attr("class"),
		DataFieldName: c.Attr("data-field-name"),
		DataName:      c.Attr("data-name"),
	}
	d := &field.Descriptor{
		FieldID:     idgen.Suffixed(newID, "field", raw.ID, raw.Name, strings.Join(strings.Fields(raw.Class), "-")),
		Ref:         c.Ref,
		Label:       lbl,
		ControlType: typ,
		Raw:         raw,
		Personal:    classify.Personal(lbl),
	}

	tag := func(cat field.Category, m classify.Match) *field.Tag {
		sub, ok := m.Get()
		if !ok {
			return nil
		}
		return &field.Tag{Subfield: sub, Index: assign(raw, counters, cat, sub)}
	}
	d.Experience = tag(field.Experience, classify.Experience(lbl))
	d.Project = tag(field.Project, classify.Project(lbl))
	d.License = tag(field.License, classify.License(lbl))
	return d
}
