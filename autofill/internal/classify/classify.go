// CLAUDE:SUMMARY Ordered label pattern tables (personal, experience, project, license) and the first-match classifier.
// Package classify maps a cleaned label to a semantic field type using four
// ordered pattern tables. Table order is the tie-break: the first entry whose
// pattern matches wins.
package classify

import (
	"regexp"
	"strings"
)

// Match is the result of classifying a label against one table: either
// Unmatched or Matched with the entry type.
type Match struct {
	typ string
	ok  bool
}

// Unmatched is the zero Match.
func Unmatched() Match { return Match{} }

// Matched returns a Match carrying typ.
func Matched(typ string) Match { return Match{typ: typ, ok: true} }

// Get returns the matched type and whether there was a match.
func (m Match) Get() (string, bool) { return m.typ, m.ok }

// OK reports whether the label matched.
func (m Match) OK() bool { return m.ok }

// Type returns the matched type, "" when unmatched.
func (m Match) Type() string { return m.typ }

func (m Match) String() string {
	if !m.ok {
		return "unmatched"
	}
	return m.typ
}

// alternative is one branch of an entry pattern. When guard is set, a match
// of re only counts if the text following it does not match guard.
type alternative struct {
	re    *regexp.Regexp
	guard *regexp.Regexp
}

func (a alternative) matches(s string) bool {
	if a.guard == nil {
		return a.re.MatchString(s)
	}
	for _, loc := range a.re.FindAllStringIndex(s, -1) {
		if !a.guard.MatchString(s[loc[1]:]) {
			return true
		}
	}
	return false
}

// Entry is one (type, pattern) row.
type Entry struct {
	Type string
	alts []alternative
}

func (e Entry) matches(s string) bool {
	for _, a := range e.alts {
		if a.matches(s) {
			return true
		}
	}
	return false
}

// Table is an ordered list of entries.
type Table struct {
	Name    string
	entries []Entry
}

// Match returns the type of the first entry matching label.
func (t *Table) Match(label string) Match {
	s := strings.ToLower(label)
	for _, e := range t.entries {
		if e.matches(s) {
			return Matched(e.Type)
		}
	}
	return Unmatched()
}

// Types returns the entry types in table order.
func (t *Table) Types() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Type
	}
	return out
}

func entry(typ, pattern string) Entry {
	return Entry{Type: typ, alts: []alternative{{re: regexp.MustCompile("(?i)" + pattern)}}}
}

// guarded adds a branch that matches pattern unless notFollowedBy matches the
// remainder of the label.
func (e Entry) guarded(pattern, notFollowedBy string) Entry {
	e.alts = append(e.alts, alternative{
		re:    regexp.MustCompile("(?i)" + pattern),
		guard: regexp.MustCompile("(?i)^" + notFollowedBy),
	})
	return e
}

func (t *Table) add(entries ...Entry) *Table {
	t.entries = append(t.entries, entries...)
	return t
}

// Personal classifies label against the personal table.
func Personal(label string) Match { return PersonalTable.Match(label) }

// Experience classifies label against the experience table.
func Experience(label string) Match { return ExperienceTable.Match(label) }

// Project classifies label against the project table.
func Project(label string) Match { return ProjectTable.Match(label) }

// License classifies label against the license table.
func License(label string) Match { return LicenseTable.Match(label) }
