// CLAUDE:SUMMARY Field descriptor model: category, repeated-entry tags, control types, raw identifiers, primary slot.
package field

import (
	"strings"

	"github.com/hazyhaar/autofill/autofill/internal/classify"
	"github.com/hazyhaar/autofill/autofill/surface"
)

// Category is the semantic family of a field.
type Category int

const (
	Unclassified Category = iota
	Personal
	Experience
	Project
	License
)

func (c Category) String() string {
	switch c {
	case Personal:
		return "personal"
	case Experience:
		return "experience"
	case Project:
		return "project"
	case License:
		return "license"
	default:
		return "unclassified"
	}
}

// Repeated lists the repeated-entry categories in resolution priority order.
var Repeated = []Category{Experience, Project, License}

// Tag places a field in a repeated entry: which attribute of which entry.
type Tag struct {
	Subfield string `json:"subfield"`
	Index    int    `json:"index"`
}

// ControlType is the kind of control as the resolver and writer see it.
type ControlType string

const (
	Text     ControlType = "text"
	Email    ControlType = "email"
	Tel      ControlType = "tel"
	URL      ControlType = "url"
	Date     ControlType = "date"
	Month    ControlType = "month"
	Textarea ControlType = "textarea"
	Select   ControlType = "select"
)

// ControlTypeOf maps a tag and type attribute to a ControlType. ok is false
// for controls the engine never fills (checkboxes, hidden inputs, buttons...).
// An input with no type, or an empty one, is a text input.
func ControlTypeOf(tag, typ string) (ControlType, bool) {
	switch strings.ToLower(tag) {
	case "textarea":
		return Textarea, true
	case "select":
		return Select, true
	case "input":
	default:
		return "", false
	}
	switch t := ControlType(strings.ToLower(strings.TrimSpace(typ))); t {
	case "":
		return Text, true
	case Text, Email, Tel, URL, Date, Month:
		return t, true
	}
	return "", false
}

// Raw holds the identifying attributes exactly as read from the control.
type Raw struct {
	Name          string `json:"name,omitempty"`
	ID            string `json:"id,omitempty"`
	Placeholder   string `json:"placeholder,omitempty"`
	Class         string `json:"class,omitempty"`
	DataFieldName string `json:"data_field_name,omitempty"`
	DataName      string `json:"data_name,omitempty"`
}

// IndexSources returns the attributes searched for a numeric slot hint, in
// priority order.
func (r Raw) IndexSources() []string {
	return []string{r.Name, r.ID, r.Class, r.DataFieldName, r.DataName}
}

// Descriptor is one classified form control.
//
// Every table match is recorded; precedence between categories is applied
// by Category and Primary, never while building.
type Descriptor struct {
	FieldID     string      `json:"field_id"`
	Ref         surface.Ref `json:"-"`
	Label       string      `json:"label"`
	ControlType ControlType `json:"type"`
	Raw         Raw         `json:"raw"`

	Personal   classify.Match `json:"-"`
	Experience *Tag           `json:"experience,omitempty"`
	Project    *Tag           `json:"project,omitempty"`
	License    *Tag           `json:"license,omitempty"`
}

// Tag returns the repeated tag for cat, nil when absent.
func (d *Descriptor) Tag(cat Category) *Tag {
	switch cat {
	case Experience:
		return d.Experience
	case Project:
		return d.Project
	case License:
		return d.License
	}
	return nil
}

// Category returns the primary category: experience, project, license,
// personal, then unclassified.
func (d *Descriptor) Category() Category {
	if cat, _ := d.Primary(); cat != Unclassified {
		return cat
	}
	if d.Personal.OK() {
		return Personal
	}
	return Unclassified
}

// Primary returns the highest priority repeated tag.
func (d *Descriptor) Primary() (Category, *Tag) {
	for _, cat := range Repeated {
		if t := d.Tag(cat); t != nil {
			return cat, t
		}
	}
	return Unclassified, nil
}

// Slot identifies one attribute of one repeated entry.
type Slot struct {
	Category Category
	Subfield string
	Index    int
}

// Slot returns the repeated slot the field writes to, if any.
func (d *Descriptor) Slot() (Slot, bool) {
	cat, t := d.Primary()
	if t == nil {
		return Slot{}, false
	}
	return Slot{Category: cat, Subfield: t.Subfield, Index: t.Index}, true
}

// Classified reports whether any table matched.
func (d *Descriptor) Classified() bool {
	return d.Category() != Unclassified
}
