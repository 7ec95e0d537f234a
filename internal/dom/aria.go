package dom

import (
	"strconv"
	"strings"
)

// interactiveRoles is the explicit ARIA role set that grants interactivity.
var interactiveRoles = map[string]struct{}{
	"button": {}, "link": {}, "checkbox": {}, "radio": {}, "switch": {},
	"tab": {}, "menuitem": {}, "option": {}, "combobox": {}, "slider": {},
	"spinbutton": {}, "textbox": {}, "searchbox": {},
}

// textInputTypes are the input types that map to the textbox role.
var textInputTypes = map[string]struct{}{
	"": {}, "text": {}, "email": {}, "search": {}, "password": {},
	"color": {}, "date": {}, "time": {}, "tel": {}, "url": {},
}

// landmarkTags maps semantic landmark elements to their emitted roles.
var landmarkTags = map[string]string{
	"nav":    "nav",
	"main":   "main",
	"aside":  "complementary",
	"footer": "contentinfo",
	"header": "banner",
}

// Role computes the element's effective role. An explicit role attribute
// wins; role="presentation"/"none" strips the element's own role while its
// descendants keep theirs.
func Role(n *Node) string {
	if n.Type != ElementNode {
		return ""
	}
	if explicit := strings.ToLower(strings.TrimSpace(n.AttrValue("role"))); explicit != "" {
		if explicit == "presentation" || explicit == "none" {
			return ""
		}
		return explicit
	}
	return nativeRole(n)
}

func nativeRole(n *Node) string {
	switch n.Tag {
	case "a":
		if n.HasAttr("href") {
			return "link"
		}
		return ""
	case "button":
		return "button"
	case "input":
		return inputRole(n.AttrValue("type"))
	case "select":
		if n.HasAttr("multiple") {
			return "listbox"
		}
		return "combobox"
	case "textarea":
		return "textbox"
	case "summary":
		return "button"
	case "fieldset":
		return "group"
	case "progress":
		return "progressbar"
	case "meter":
		return "meter"
	case "output":
		return "status"
	case "img":
		return "img"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "table":
		return "table"
	case "form":
		return "form"
	case "dialog":
		return "dialog"
	}
	if landmark, ok := landmarkTags[n.Tag]; ok {
		return landmark
	}
	if IsEditable(n) {
		return "textbox"
	}
	return ""
}

func inputRole(inputType string) string {
	inputType = strings.ToLower(inputType)
	if _, ok := textInputTypes[inputType]; ok {
		return "textbox"
	}
	switch inputType {
	case "number":
		return "spinbutton"
	case "range":
		return "slider"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	case "image", "submit", "button", "reset", "file":
		return "button"
	case "hidden":
		return ""
	}
	return "textbox"
}

// IsEditable reports a contenteditable host whose value is not 'false'.
func IsEditable(n *Node) bool {
	v, ok := n.Attr("contenteditable")
	if !ok {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(v), "false")
}

// Interactive reports whether the element receives a snapshot ref. Disabled
// elements are still interactive: they get a ref and a (disabled) tag, and
// the executor rejects actions against them.
func Interactive(n *Node) bool {
	if n.Type != ElementNode {
		return false
	}
	switch n.Tag {
	case "a":
		if n.HasAttr("href") {
			return true
		}
	case "button", "select", "textarea", "summary":
		return true
	case "input":
		return !strings.EqualFold(n.AttrValue("type"), "hidden")
	}
	if IsEditable(n) {
		return true
	}
	if explicit := strings.ToLower(strings.TrimSpace(n.AttrValue("role"))); explicit != "" {
		if _, ok := interactiveRoles[explicit]; ok {
			return true
		}
	}
	if n.Tag == "img" || n.Tag == "svg" {
		if idx, err := strconv.Atoi(n.AttrValue("tabindex")); err == nil && idx >= 0 {
			return true
		}
	}
	return false
}

// Disabled reports whether the element or any ancestor is disabled, via the
// native attribute or aria-disabled="true".
func Disabled(n *Node) bool {
	if disabledSelf(n) {
		return true
	}
	hit := false
	n.Ancestors(func(a *Node) bool {
		if disabledSelf(a) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func disabledSelf(n *Node) bool {
	if n.HasAttr("disabled") {
		switch n.Tag {
		case "button", "input", "select", "textarea", "optgroup", "option", "fieldset":
			return true
		}
	}
	return strings.EqualFold(n.AttrValue("aria-disabled"), "true")
}

// AccessibleName resolves the element's accessible name using the priority
// chain: aria-labelledby → aria-label → associated label → alt (images) →
// title → placeholder → collapsed text content. A labelledby that references
// missing ids or yields no text falls through to the next strategy.
func AccessibleName(n *Node) string {
	if name := labelledByName(n); name != "" {
		return name
	}
	if name := strings.TrimSpace(n.AttrValue("aria-label")); name != "" {
		return name
	}
	if name := associatedLabelName(n); name != "" {
		return name
	}
	if n.Tag == "img" || n.Tag == "input" && strings.EqualFold(n.AttrValue("type"), "image") {
		if alt := strings.TrimSpace(n.AttrValue("alt")); alt != "" {
			return alt
		}
	}
	if title := strings.TrimSpace(n.AttrValue("title")); title != "" {
		return title
	}
	if ph := strings.TrimSpace(n.AttrValue("placeholder")); ph != "" {
		return ph
	}
	if n.Tag == "fieldset" {
		for _, c := range n.Children {
			if c.Type == ElementNode && c.Tag == "legend" {
				return CollapsedText(c)
			}
		}
	}
	switch n.Tag {
	case "input", "select", "textarea", "progress", "meter":
		// Controls have no intrinsic text name; their content is value.
		return ""
	}
	return CollapsedText(n)
}

// ExplicitName resolves only the author-supplied label (aria-labelledby,
// aria-label). Landmark containers use this: falling through to text content
// would swallow their entire subtree as a "name".
func ExplicitName(n *Node) string {
	if name := labelledByName(n); name != "" {
		return name
	}
	return strings.TrimSpace(n.AttrValue("aria-label"))
}

func labelledByName(n *Node) string {
	refs := strings.Fields(n.AttrValue("aria-labelledby"))
	if len(refs) == 0 {
		return ""
	}
	doc := n.Owner()
	if doc == nil {
		return ""
	}
	parts := make([]string, 0, len(refs))
	for _, id := range refs {
		target := doc.GetElementByID(id)
		if target == nil {
			// Broken reference: the whole strategy falls through.
			return ""
		}
		if text := CollapsedText(target); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func associatedLabelName(n *Node) string {
	switch n.Tag {
	case "input", "select", "textarea", "output", "meter", "progress":
	default:
		return ""
	}
	if wrapping := n.Closest("label"); wrapping != nil && wrapping != n {
		if text := labelText(wrapping, n); text != "" {
			return text
		}
	}
	id := n.ID()
	if id == "" {
		return ""
	}
	doc := n.Owner()
	if doc == nil {
		return ""
	}
	label := doc.Find(func(el *Node) bool {
		return el.Tag == "label" && el.AttrValue("for") == id
	})
	if label == nil {
		return ""
	}
	return labelText(label, n)
}

// labelText collects a label's text excluding the labeled control's own
// value text.
func labelText(label, control *Node) string {
	var sb strings.Builder
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur == control {
			return
		}
		if cur.Type == TextNode {
			sb.WriteString(cur.Data)
			return
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(label)
	return strings.Join(strings.Fields(sb.String()), " ")
}
