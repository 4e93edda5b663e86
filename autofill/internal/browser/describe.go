package browser

import (
	"strings"

	"github.com/hazyhaar/autofill/autofill/surface"
)

// describeJS runs with this bound to the control. Text belonging to the
// control itself (a select's options) is left out of label context.
const describeJS = `() => {
	const el = this;
	const keys = ["name", "id", "class", "placeholder", "aria-label", "data-field-name", "data-name"];
	const attrs = {};
	for (const k of keys) {
		if (el.hasAttribute(k)) attrs[k] = el.getAttribute(k);
	}
	const texts = (root) => {
		const out = [];
		const walker = document.createTreeWalker(root, NodeFilter.SHOW_TEXT);
		let n;
		while ((n = walker.nextNode())) {
			if (el.contains(n)) continue;
			const p = n.parentElement;
			if (p && (p.tagName === "SCRIPT" || p.tagName === "STYLE")) continue;
			out.push(n.textContent);
		}
		return out;
	};
	let forLabel = "";
	if (el.id) {
		const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
		if (l) forLabel = l.textContent;
	}
	const wrap = el.closest("label");
	const options = el.tagName === "SELECT"
		? Array.from(el.options).map(o => ({ value: o.value, text: o.textContent }))
		: [];
	return {
		tag: el.tagName.toLowerCase(),
		type: (el.getAttribute("type") || "").toLowerCase(),
		attrs: attrs,
		visible: el.offsetParent !== null,
		disabled: !!el.disabled,
		readOnly: !!el.readOnly,
		forLabel: forLabel,
		wrappingLabel: wrap ? texts(wrap).join("") : "",
		container: el.parentElement ? texts(el.parentElement) : [],
		options: options,
	};
}`

const dispatchJS = `(events) => {
	for (const e of events) {
		switch (e.kind) {
		case "focus":
			this.focus();
			break;
		case "blur":
			this.blur();
			break;
		case "keydown":
		case "keypress":
		case "keyup": {
			const code = e.key ? e.key.charCodeAt(0) : 0;
			this.dispatchEvent(new KeyboardEvent(e.kind, { key: e.key, code: e.key, keyCode: code, which: code, bubbles: true }));
			break;
		}
		default:
			this.dispatchEvent(new Event(e.kind, { bubbles: true }));
		}
	}
}`

// description is what describeJS returns.
type description struct {
	Tag           string            `json:"tag"`
	Type          string            `json:"type"`
	Attrs         map[string]string `json:"attrs"`
	Visible       bool              `json:"visible"`
	Disabled      bool              `json:"disabled"`
	ReadOnly      bool              `json:"readOnly"`
	ForLabel      string            `json:"forLabel"`
	WrappingLabel string            `json:"wrappingLabel"`
	Container     []string          `json:"container"`
	Options       []struct {
		Value string `json:"value"`
		Text  string `json:"text"`
	} `json:"options"`
}

func (d description) control(ref surface.Ref) surface.Control {
	c := surface.Control{
		Ref:      ref,
		Tag:      d.Tag,
		Type:     d.Type,
		Attrs:    d.Attrs,
		Visible:  d.Visible,
		Disabled: d.Disabled,
		ReadOnly: d.ReadOnly,
		Label: surface.LabelContext{
			ForLabel:      strings.TrimSpace(d.ForLabel),
			WrappingLabel: strings.TrimSpace(d.WrappingLabel),
		},
	}
	if c.Attrs == nil {
		c.Attrs = map[string]string{}
	}
	for _, t := range d.Container {
		if t = strings.TrimSpace(t); t != "" {
			c.Label.ContainerText = append(c.Label.ContainerText, t)
		}
	}
	for _, o := range d.Options {
		c.Options = append(c.Options, surface.Option{Value: o.Value, Text: strings.TrimSpace(o.Text)})
	}
	return c
}
