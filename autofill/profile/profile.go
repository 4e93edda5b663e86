// CLAUDE:SUMMARY User profile snapshot: scalar fields, education/experience/project/license sequences, alias-tolerant JSON decoding.
// Package profile holds the read-only user profile the local tier resolves
// values from. Decoding accepts the key aliases found in exported profiles:
// projects may arrive as "personalProjects", licenses as "certifications" or
// "awards", list fields as either a string or an array.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StringList decodes from a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if strings.TrimSpace(one) == "" {
			*l = nil
		} else {
			*l = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("profile: string or string list: %w", err)
	}
	*l = many
	return nil
}

// Join renders the list comma separated.
func (l StringList) Join() string {
	return strings.Join(l, ", ")
}

// Education is one education entry.
type Education struct {
	School string `json:"school,omitempty"`
	Degree string `json:"degree,omitempty"`
	Field  string `json:"field,omitempty"`
}

// Experience is one work history entry. EndDate is empty for a current role.
type Experience struct {
	Company     string `json:"company,omitempty"`
	Position    string `json:"position,omitempty"`
	Title       string `json:"title,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Current     bool   `json:"current,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Role returns Position, falling back to Title.
func (e Experience) Role() string {
	if e.Position != "" {
		return e.Position
	}
	return e.Title
}

// Project is one personal project.
type Project struct {
	Name         string     `json:"name,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Technologies StringList `json:"technologies,omitempty"`
	Tools        StringList `json:"tools,omitempty"`
}

// License is one license, certification or award.
type License struct {
	Name         string `json:"name,omitempty"`
	Title        string `json:"title,omitempty"`
	Issuer       string `json:"issuer,omitempty"`
	Authority    string `json:"authority,omitempty"`
	Organization string `json:"organization,omitempty"`
	Date         string `json:"date,omitempty"`
}

// Profile is a user profile snapshot.
type Profile struct {
	FullName  string     `json:"fullName,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Location  string     `json:"location,omitempty"`
	LinkedIn  string     `json:"linkedin,omitempty"`
	GitHub    string     `json:"github,omitempty"`
	Portfolio string     `json:"portfolio,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Skills    StringList `json:"skills,omitempty"`

	Education  []Education  `json:"education,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Projects   []Project    `json:"projects,omitempty"`
	Licenses   []License    `json:"licenses,omitempty"`

	// Raw is the document the profile was decoded from. The remote tier
	// forwards it untouched so services see fields this type does not model.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler with alias resolution. The first
// alias key present wins, even when its value is empty.
func (p *Profile) UnmarshalJSON(b []byte) error {
	type plain Profile
	var aux struct {
		plain
		Projects         *[]Project `json:"projects"`
		PersonalProjects *[]Project `json:"personalProjects"`
		Certifications   *[]License `json:"certifications"`
		Licenses         *[]License `json:"licenses"`
		Awards           *[]License `json:"awards"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return fmt.Errorf("profile: decode: %w", err)
	}
	*p = Profile(aux.plain)
	p.Projects = firstPresent(aux.Projects, aux.PersonalProjects)
	p.Licenses = firstPresent(aux.Certifications, aux.Licenses, aux.Awards)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func firstPresent[T any](candidates ...*[]T) []T {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return nil
}

// Parse decodes a profile document.
func Parse(b []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Document returns the JSON sent to remote services: the raw document when
// the profile was decoded, the marshalled profile otherwise, {} for nil.
func (p *Profile) Document() json.RawMessage {
	if p == nil {
		return json.RawMessage(`{}`)
	}
	if len(p.Raw) > 0 {
		return p.Raw
	}
	b, err := json.Marshal(p)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// FirstName is the part of FullName before the first space.
func (p *Profile) FirstName() string {
	first, _, _ := strings.Cut(p.FullName, " ")
	return first
}

// LastName is everything after the first space of FullName.
func (p *Profile) LastName() string {
	_, rest, _ := strings.Cut(p.FullName, " ")
	return rest
}
