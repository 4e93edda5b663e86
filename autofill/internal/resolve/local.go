package resolve

import (
	"regexp"

	"github.com/hazyhaar/autofill/autofill/internal/classify"
	"github.com/hazyhaar/autofill/autofill/internal/field"
	"github.com/hazyhaar/autofill/autofill/profile"
)

var isoDay = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Local resolves f from the profile alone, trying experience, project and
// license tags before the personal match. An index past the end of its
// sequence ends the lookup with no value; an entry whose attribute is empty
// lets the next category try.
func Local(f *field.Descriptor, p *profile.Profile) string {
	if p == nil {
		return ""
	}
	for _, cat := range field.Repeated {
		t := f.Tag(cat)
		if t == nil {
			continue
		}
		v, inRange := repeated(cat, t, p)
		if !inRange {
			return ""
		}
		if v != "" {
			return v
		}
	}
	if typ, ok := f.Personal.Get(); ok {
		return personal(typ, p)
	}
	return ""
}

func repeated(cat field.Category, t *field.Tag, p *profile.Profile) (string, bool) {
	switch cat {
	case field.Experience:
		if t.Index < 0 || t.Index >= len(p.Experience) {
			return "", false
		}
		return experienceValue(t.Subfield, p.Experience[t.Index]), true
	case field.Project:
		if t.Index < 0 || t.Index >= len(p.Projects) {
			return "", false
		}
		return projectValue(t.Subfield, p.Projects[t.Index]), true
	case field.License:
		if t.Index < 0 || t.Index >= len(p.Licenses) {
			return "", false
		}
		return licenseValue(t.Subfield, p.Licenses[t.Index]), true
	}
	return "", true
}

func experienceValue(sub string, e profile.Experience) string {
	switch sub {
	case classify.Company:
		return e.Company
	case classify.Title:
		return e.Role()
	case classify.StartDate:
		return FormatMonthYear(e.StartDate)
	case classify.EndDate:
		if e.Current {
			return "Present"
		}
		return FormatMonthYear(e.EndDate)
	case classify.Description:
		return e.Description
	case classify.Location:
		return e.Location
	}
	return ""
}

func projectValue(sub string, pr profile.Project) string {
	switch sub {
	case classify.Name:
		return firstNonEmpty(pr.Name, pr.Title)
	case classify.Description:
		return firstNonEmpty(pr.Description, pr.Summary)
	case classify.Technologies:
		if len(pr.Technologies) > 0 {
			return pr.Technologies.Join()
		}
		return pr.Tools.Join()
	}
	return ""
}

func licenseValue(sub string, l profile.License) string {
	switch sub {
	case classify.Name:
		return firstNonEmpty(l.Name, l.Title)
	case classify.Issuer:
		return firstNonEmpty(l.Issuer, l.Authority, l.Organization)
	case classify.Date:
		if isoDay.MatchString(l.Date) {
			return FormatMonthYear(l.Date)
		}
		return l.Date
	}
	return ""
}

// personal looks the type up in the flattened profile. Generic company and
// title fields take the first experience entry.
func personal(typ string, p *profile.Profile) string {
	var first profile.Experience
	if len(p.Experience) > 0 {
		first = p.Experience[0]
	}
	var edu profile.Education
	if len(p.Education) > 0 {
		edu = p.Education[0]
	}

	switch typ {
	case classify.FirstName:
		return p.FirstName()
	case classify.LastName:
		return p.LastName()
	case classify.FullName:
		return p.FullName
	case classify.Email:
		return p.Email
	case classify.Phone:
		return p.Phone
	case classify.Location:
		return p.Location
	case classify.LinkedIn:
		return p.LinkedIn
	case classify.GitHub:
		return p.GitHub
	case classify.Portfolio:
		return p.Portfolio
	case classify.Summary:
		return p.Summary
	case classify.Skills:
		return p.Skills.Join()
	case classify.Education:
		return edu.School
	case classify.Degree:
		return trimJoin(edu.Degree, edu.Field)
	case classify.Major:
		return edu.Field
	case classify.Company:
		return first.Company
	case classify.Title:
		return first.Role()
	}
	return ""
}
