// CLAUDE:SUMMARY Label resolution for form controls (label[for], wrapping label, aria-label, placeholder, container text, name) and idempotent cleaning.
package label

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/autofill/autofill/surface"
)

// MinLength is the shortest cleaned label kept in an inventory.
const MinLength = 2

var (
	leadingPrompt   = regexp.MustCompile(`(?i)^(?:(?:please|enter|your)\s+)+`)
	trailingMarkers = regexp.MustCompile(`(?i)(?:\s*(?:\(required\)|required|\*))+$`)
	stripChars      = regexp.MustCompile(`[*:()\[\]{}]`)
	whitespace      = regexp.MustCompile(`\s+`)
	nameSeparators  = strings.NewReplacer("_", " ", "-", " ")
)

// Resolve returns the cleaned label of c. Sources, first non-empty wins:
// label[for=id], wrapping label, aria-label, placeholder, the first
// container text node longer than 2 and shorter than 100 characters, and
// finally the name attribute with separators turned into spaces.
func Resolve(c surface.Control) string {
	return Clean(Raw(c))
}

// Raw returns the uncleaned label text of c.
func Raw(c surface.Control) string {
	if c.Attr("id") != "" {
		if t := strings.TrimSpace(c.Label.ForLabel); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(c.Label.WrappingLabel); t != "" {
		return t
	}
	if t := strings.TrimSpace(c.Attr("aria-label")); t != "" {
		return t
	}
	if t := strings.TrimSpace(c.Attr("placeholder")); t != "" {
		return t
	}
	for _, t := range c.Label.ContainerText {
		t = strings.TrimSpace(t)
		if n := utf8.RuneCountInString(t); n > 2 && n < 100 {
			return t
		}
	}
	return strings.TrimSpace(nameSeparators.Replace(c.Attr("name")))
}

// Clean strips prompt words, required markers and punctuation, then
// collapses whitespace. It runs to a fixed point, so Clean(Clean(s)) ==
// Clean(s).
func Clean(s string) string {
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = strings.TrimSpace(s)
	s = leadingPrompt.ReplaceAllString(s, "")
	s = trailingMarkers.ReplaceAllString(s, "")
	s = stripChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Usable reports whether a cleaned label is long enough to keep.
func Usable(cleaned string) bool {
	return utf8.RuneCountInString(cleaned) >= MinLength
}
