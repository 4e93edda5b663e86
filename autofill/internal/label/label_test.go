package label

import (
	"testing"

	"github.com/hazyhaar/autofill/autofill/surface"
)

func TestClean(t *testing.T) {
	cases := []struct{ in, want string }{
		{"First Name *", "First Name"},
		{"Please enter your email:", "email"},
		{"Enter Your Phone (required)", "Phone"},
		{"Company Name Required", "Company Name"},
		{"  Start   Date\t[MM/YYYY] ", "Start Date MM/YYYY"},
		{"Your your name", "name"},
		{"{Skills}", "Skills"},
		{"*", ""},
		{"Please", "Please"},
	}
	for _, tc := range cases {
		if got := Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Please enter your email:",
		"please please   Enter   your  Name * required *",
		"Name (required) (required)",
		"(Phone) *",
		"your * your name",
		"Required",
		"Email:*",
		"  \t\n ",
		"Enter  ( your ) name",
		"Your résumé *",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestResolvePriority(t *testing.T) {
	base := func() surface.Control {
		return surface.Control{
			Attrs: map[string]string{
				"id":          "fn",
				"name":        "first_name",
				"aria-label":  "Aria first",
				"placeholder": "Placeholder first",
			},
			Label: surface.LabelContext{
				ForLabel:      "For first",
				WrappingLabel: "Wrapping first",
				ContainerText: []string{"x", "Container first"},
			},
		}
	}

	c := base()
	if got := Resolve(c); got != "For first" {
		t.Errorf("for label: %q", got)
	}

	c.Label.ForLabel = ""
	if got := Resolve(c); got != "Wrapping first" {
		t.Errorf("wrapping label: %q", got)
	}

	c.Label.WrappingLabel = ""
	if got := Resolve(c); got != "Aria first" {
		t.Errorf("aria-label: %q", got)
	}

	delete(c.Attrs, "aria-label")
	if got := Resolve(c); got != "Placeholder first" {
		t.Errorf("placeholder: %q", got)
	}

	delete(c.Attrs, "placeholder")
	if got := Resolve(c); got != "Container first" {
		t.Errorf("container text: %q", got)
	}

	c.Label.ContainerText = []string{"ab"}
	if got := Resolve(c); got != "first name" {
		t.Errorf("name fallback: %q", got)
	}
}

func TestResolveForLabelNeedsID(t *testing.T) {
	c := surface.Control{
		Attrs: map[string]string{"name": "email-address"},
		Label: surface.LabelContext{ForLabel: "Stale"},
	}
	if got := Resolve(c); got != "email address" {
		t.Errorf("got %q", got)
	}
}

func TestUsable(t *testing.T) {
	if Usable("a") || !Usable("ab") || Usable("") {
		t.Error("Usable threshold is two runes")
	}
}
