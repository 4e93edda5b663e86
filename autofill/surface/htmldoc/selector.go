package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
)

// Select returns the elements under root matching selector, in document
// order. Supported: comma-separated groups of descendant chains whose parts
// are tag, #id, .class, [attr] and [attr=val] in any combination
// ("form#apply fieldset.experience", "div[data-section=work]").
func Select(root *html.Node, selector string) []*html.Node {
	var out []*html.Node
	seen := make(map[*html.Node]bool)
	for _, group := range strings.Split(selector, ",") {
		for _, n := range selectChain(root, strings.Fields(group)) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sortByOrder(out, documentOrder(root))
	return out
}

func selectChain(root *html.Node, parts []string) []*html.Node {
	if len(parts) == 0 {
		return nil
	}
	matches := matchAll(root, parseCompound(parts[0]), true)
	for _, part := range parts[1:] {
		sel := parseCompound(part)
		var next []*html.Node
		for _, m := range matches {
			next = append(next, matchAll(m, sel, false)...)
		}
		matches = next
	}
	return matches
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
	hasVal  bool
}

func parseCompound(s string) compound {
	var c compound
	if i := strings.IndexByte(s, '['); i >= 0 {
		attr := strings.TrimSuffix(s[i+1:], "]")
		s = s[:i]
		if k, v, ok := strings.Cut(attr, "="); ok {
			c.attrKey, c.attrVal, c.hasVal = k, strings.Trim(v, `"'`), true
		} else {
			c.attrKey = attr
		}
	}
	// Split "tag#id.a.b" on '#' and '.' boundaries.
	token, kind := "", byte(0)
	flush := func() {
		switch kind {
		case 0:
			c.tag = strings.ToLower(token)
		case '#':
			c.id = token
		case '.':
			c.classes = append(c.classes, token)
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '#' || s[i] == '.' {
			flush()
			token, kind = "", s[i]
			continue
		}
		token += string(s[i])
	}
	flush()
	return c
}

// matchAll returns descendants of root matching c; root itself is included
// when self is true.
func matchAll(root *html.Node, c compound, self bool) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if n == root && !self {
			return
		}
		if c.matches(n) {
			out = append(out, n)
		}
	})
	return out
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && c.tag != "*" && n.Data != c.tag {
		return false
	}
	if c.id != "" && getAttr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(getAttr(n, "class"))
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	if c.attrKey != "" {
		v, ok := lookupAttr(n, c.attrKey)
		if !ok || (c.hasVal && v != c.attrVal) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
