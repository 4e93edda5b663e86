package resolve

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var yearMonth = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Layouts accepted for profile dates, most common first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
	"January 2006",
	"Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006",
}

// FormatMonthYear renders a profile date as MM/YYYY. "YYYY-MM" is rewritten
// directly; anything unparseable (including "Present") is returned as is.
func FormatMonthYear(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := yearMonth.FindStringSubmatch(s); m != nil {
		return m[2] + "/" + m[1]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fmt.Sprintf("%02d/%d", int(t.Month()), t.Year())
		}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func trimJoin(a, b string) string {
	return strings.TrimSpace(a + " " + b)
}
