package inventory

import (
	"regexp"
	"strconv"

	"github.com/hazyhaar/autofill/autofill/internal/field"
)

// Tried in order against each source; the first parseable capture wins.
var indexPatterns = []*regexp.Regexp{
	regexp.MustCompile(`_(\d+)$`),
	regexp.MustCompile(`\[(\d+)\]`),
	regexp.MustCompile(`-(\d+)$`),
	regexp.MustCompile(`\.(\d+)$`),
	regexp.MustCompile(`(\d+)$`),
	regexp.MustCompile(`(?i)experience.*?(\d+)`),
	regexp.MustCompile(`(?i)job.*?(\d+)`),
	regexp.MustCompile(`(?i)work.*?(\d+)`),
}

// ExplicitIndex looks for a numeric slot hint in the given sources, tried in
// order (name, id, class, data-field-name, data-name).
func ExplicitIndex(sources ...string) (int, bool) {
	for _, src := range sources {
		if src == "" {
			continue
		}
		for _, re := range indexPatterns {
			m := re.FindStringSubmatch(src)
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

type counterKey struct {
	cat      field.Category
	subfield string
}

// Counters hands out fallback slot indices per (category, subfield). One
// Counters value spans one inventory build.
type Counters struct {
	next map[counterKey]int
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{next: make(map[counterKey]int)}
}

// Next returns the next index for (cat, subfield) and advances it.
func (c *Counters) Next(cat field.Category, subfield string) int {
	if c.next == nil {
		c.next = make(map[counterKey]int)
	}
	k := counterKey{cat, subfield}
	n := c.next[k]
	c.next[k] = n + 1
	return n
}

// Peek returns how many fallback indices were handed out for (cat, subfield).
func (c *Counters) Peek(cat field.Category, subfield string) int {
	return c.next[counterKey{cat, subfield}]
}

// assign returns the slot index for a repeated match: the explicit hint when
// present, the counter otherwise.
func assign(raw field.Raw, counters *Counters, cat field.Category, subfield string) int {
	if n, ok := ExplicitIndex(raw.IndexSources()...); ok {
		return n
	}
	return counters.Next(cat, subfield)
}
