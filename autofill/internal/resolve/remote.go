package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/hazyhaar/autofill/autofill/internal/classify"
	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/profile"
)

var errSkipped = errors.New("resolve: remote tier not routable")

// ErrUnusable is returned for a remote response that is not a JSON object.
var ErrUnusable = errors.New("resolve: unusable remote response")

// RemoteField is the wire form of a descriptor sent to the remote tier.
// Category pairs are null when the field has no such tag.
type RemoteField struct {
	FieldID             string  `json:"field_id"`
	Label               string  `json:"label"`
	Type                string  `json:"type"`
	Name                string  `json:"name"`
	Placeholder         string  `json:"placeholder"`
	ExperienceIndex     *int    `json:"experienceIndex"`
	ExperienceFieldType *string `json:"experienceFieldType"`
	ProjectIndex        *int    `json:"projectIndex"`
	ProjectFieldType    *string `json:"projectFieldType"`
	LicenseIndex        *int    `json:"licenseIndex"`
	LicenseFieldType    *string `json:"licenseFieldType"`
}

// RemoteRequest is the single batch sent per run.
type RemoteRequest struct {
	Fields  []RemoteField   `json:"fields"`
	Profile json.RawMessage `json:"profile"`
}

// NewRemoteRequest builds the request for fields and p.
func NewRemoteRequest(fields []*field.Descriptor, p *profile.Profile) RemoteRequest {
	req := RemoteRequest{Fields: make([]RemoteField, len(fields)), Profile: p.Document()}
	for i, f := range fields {
		rf := RemoteField{
			FieldID:     f.FieldID,
			Label:       f.Label,
			Type:        string(f.ControlType),
			Name:        f.Raw.Name,
			Placeholder: f.Raw.Placeholder,
		}
		rf.ExperienceIndex, rf.ExperienceFieldType = wireTag(f.Experience)
		rf.ProjectIndex, rf.ProjectFieldType = wireTag(f.Project)
		rf.LicenseIndex, rf.LicenseFieldType = wireTag(f.License)
		req.Fields[i] = rf
	}
	return req
}

func wireTag(t *field.Tag) (*int, *string) {
	if t == nil {
		return nil, nil
	}
	idx, sub := t.Index, t.Subfield
	return &idx, &sub
}

// Descriptor rebuilds a descriptor from its wire form, so a local resolver
// can serve remote requests.
func (rf RemoteField) Descriptor() *field.Descriptor {
	typ := field.ControlType(rf.Type)
	switch typ {
	case field.Text, field.Email, field.Tel, field.URL, field.Date, field.Month, field.Textarea, field.Select:
	default:
		typ = field.Text
	}
	return &field.Descriptor{
		FieldID:     rf.FieldID,
		Label:       rf.Label,
		ControlType: typ,
		Raw:         field.Raw{Name: rf.Name, Placeholder: rf.Placeholder},
		Personal:    classify.Personal(rf.Label),
		Experience:  fromWire(rf.ExperienceIndex, rf.ExperienceFieldType),
		Project:     fromWire(rf.ProjectIndex, rf.ProjectFieldType),
		License:     fromWire(rf.LicenseIndex, rf.LicenseFieldType),
	}
}

func fromWire(idx *int, sub *string) *field.Tag {
	if idx == nil || sub == nil || *sub == "" {
		return nil
	}
	return &field.Tag{Subfield: *sub, Index: *idx}
}

func (r *Resolver) callRemote(ctx context.Context, fields []*field.Descriptor, p *profile.Profile) (map[string]string, error) {
	if r.remote == nil {
		return nil, errSkipped
	}
	if rt, ok := r.caller.(routable); ok && !rt.Routable(r.cfg.Service) {
		r.logger.DebugContext(ctx, "resolve: remote tier not routable", "service", r.cfg.Service)
		return nil, errSkipped
	}

	payload, err := json.Marshal(NewRemoteRequest(fields, p))
	if err != nil {
		return nil, fmt.Errorf("resolve: encode request: %w", err)
	}
	resp, err := r.remote(ctx, payload)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f.FieldID] = true
	}
	return r.decodeResponse(resp, wanted)
}

// decodeResponse keeps the non-empty sanitised string or number values of
// requested fields. Remote values are plain text: anything that parses as a
// tag is removed, so "C++ <templates>" comes back as "C++". A value that
// loses markup is logged, and one left empty resolves locally instead.
func (r *Resolver) decodeResponse(resp []byte, wanted map[string]bool) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(resp))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: null", ErrUnusable)
	}

	out := make(map[string]string)
	for id, v := range raw {
		if !wanted[id] {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case json.Number:
			s = val.String()
		default:
			continue
		}
		clean, stripped := r.sanitize(s)
		if stripped {
			r.logger.Warn("resolve: markup removed from remote value",
				"service", r.cfg.Service, "field_id", id, "kept", clean)
		}
		if clean != "" {
			out[id] = clean
		}
	}
	return out, nil
}

// sanitize strips tags with the strict policy and decodes entities. stripped
// reports whether the policy removed anything beyond entity escaping.
func (r *Resolver) sanitize(s string) (clean string, stripped bool) {
	text := html.UnescapeString(r.sanitizer.Sanitize(s))
	return strings.TrimSpace(text), text != html.UnescapeString(s)
}
