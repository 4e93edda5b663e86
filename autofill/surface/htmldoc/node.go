package htmldoc

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// walk visits n and its descendants in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// textOf concatenates the text under n, skipping scripts, styles and the
// subtree rooted at skip.
func textOf(n, skip *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c == skip || isScript(c) {
			return
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			rec(k)
		}
	}
	rec(n)
	return b.String()
}

// textNodes returns the trimmed non-empty text nodes under n in document
// order, skipping the subtree rooted at skip.
func textNodes(n, skip *html.Node) []string {
	var out []string
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c == skip || isScript(c) {
			return
		}
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				out = append(out, t)
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			rec(k)
		}
	}
	rec(n)
	return out
}

func isScript(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style)
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func documentOrder(root *html.Node) map[*html.Node]int {
	order := make(map[*html.Node]int)
	i := 0
	walk(root, func(n *html.Node) {
		order[n] = i
		i++
	})
	return order
}

func sortByOrder(nodes []*html.Node, order map[*html.Node]int) {
	sort.SliceStable(nodes, func(i, j int) bool { return order[nodes[i]] < order[nodes[j]] })
}
