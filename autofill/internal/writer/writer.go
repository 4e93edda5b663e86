// CLAUDE:SUMMARY Writes resolved values into the form with a human-like event sequence, one write per repeated slot, then persists fills to memory.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/surface"
	"github.com/hazyhaar/autofill/kit"
)

// MemoryWriter persists the value filled for a label.
type MemoryWriter interface {
	Set(ctx context.Context, label, value string) error
}

// Options configures Write.
type Options struct {
	Memory      MemoryWriter // nil disables memory writes
	Concurrency int          // memory writes in flight, default 4
	Logger      *slog.Logger
}

// Filled records one successful write.
type Filled struct {
	FieldID string `json:"field_id"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

// Outcome summarises a Write.
type Outcome struct {
	Filled     int      `json:"filled"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Written    []Filled `json:"written,omitempty"`
}

var monthYear = regexp.MustCompile(`^(\d{2})/(\d{4})$`)

// Adapt converts MM/YYYY to the format date and month inputs accept.
func Adapt(t field.ControlType, value string) string {
	m := monthYear.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	switch t {
	case field.Date:
		return m[2] + "-" + m[1] + "-01"
	case field.Month:
		return m[2] + "-" + m[1]
	}
	return value
}

// Write fills fields, in order, with values keyed by field id. Blank values
// are skipped, and a repeated slot (category, subfield, index) is written at
// most once. A surface error skips that control. Only a done ctx aborts.
func Write(ctx context.Context, s surface.Surface, fields []*field.Descriptor, values map[string]string, opts Options) (Outcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(kit.LogAttrs(ctx)...)

	var out Outcome
	claimed := make(map[field.Slot]bool)
	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("writer: %w", err)
		}
		value, ok := values[f.FieldID]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		slot, repeated := f.Slot()
		if repeated && claimed[slot] {
			out.Duplicates++
			logger.Debug("writer: slot already filled", "field_id", f.FieldID, "label", f.Label,
				"category", slot.Category, "subfield", slot.Subfield, "index", slot.Index)
			continue
		}

		fill := Adapt(f.ControlType, value)
		var err error
		if f.ControlType == field.Select {
			err = writeSelect(ctx, s, f.Ref, fill)
		} else {
			err = writeText(ctx, s, f.Ref, fill)
		}
		if err != nil {
			out.Failed++
			logger.Warn("writer: fill failed", "field_id", f.FieldID, "label", f.Label, "error", err)
			continue
		}

		if repeated {
			claimed[slot] = true
		}
		out.Filled++
		out.Written = append(out.Written, Filled{FieldID: f.FieldID, Label: f.Label, Value: fill})
	}

	remember(ctx, opts, out.Written, logger)
	return out, nil
}

func writeText(ctx context.Context, s surface.Surface, ref surface.Ref, value string) error {
	first, _ := utf8.DecodeRuneInString(value)
	last, _ := utf8.DecodeLastRuneInString(value)

	if err := s.Dispatch(ctx, ref,
		surface.Event{Kind: surface.Focus},
		surface.Event{Kind: surface.KeyDown, Key: string(first)},
		surface.Event{Kind: surface.KeyPress, Key: string(first)},
	); err != nil {
		return err
	}
	if _, err := s.WriteValue(ctx, ref, value); err != nil {
		return err
	}
	return s.Dispatch(ctx, ref,
		surface.Event{Kind: surface.Input},
		surface.Event{Kind: surface.KeyUp, Key: string(last)},
		surface.Event{Kind: surface.Change},
		surface.Event{Kind: surface.Blur},
	)
}

// writeSelect assigns by option value and, when that does not stick, by
// option text compared case-insensitively. An unmatched value still counts
// as written.
func writeSelect(ctx context.Context, s surface.Surface, ref surface.Ref, value string) error {
	if err := s.Dispatch(ctx, ref, surface.Event{Kind: surface.Focus}); err != nil {
		return err
	}
	got, err := s.WriteValue(ctx, ref, value)
	if err != nil {
		return err
	}
	if got != value {
		c, err := s.ReadAttributes(ctx, ref)
		if err != nil {
			return err
		}
		for _, opt := range c.Options {
			if strings.EqualFold(strings.TrimSpace(opt.Text), value) {
				if _, err := s.WriteValue(ctx, ref, opt.Value); err != nil {
					return err
				}
				break
			}
		}
	}
	return s.Dispatch(ctx, ref, surface.Event{Kind: surface.Change}, surface.Event{Kind: surface.Blur})
}

func remember(ctx context.Context, opts Options, written []Filled, logger *slog.Logger) {
	if opts.Memory == nil || len(written) == 0 {
		return
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, w := range written {
		g.Go(func() error {
			if err := opts.Memory.Set(ctx, w.Label, w.Value); err != nil {
				logger.Warn("writer: memory write failed", "label", w.Label, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
