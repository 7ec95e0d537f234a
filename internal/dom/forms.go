package dom

import (
	"strings"
)

// Value reads a control's current value: the live property when one has been
// set, else the parsed attribute/content. Select elements report selected
// option text, comma-joined for multi-selects.
func Value(n *Node) string {
	switch n.Tag {
	case "input":
		if n.valueProp != nil {
			return *n.valueProp
		}
		return n.AttrValue("value")
	case "textarea":
		if n.valueProp != nil {
			return *n.valueProp
		}
		return strings.TrimSpace(n.TextContent())
	case "select":
		texts := make([]string, 0, 2)
		for _, opt := range SelectedOptions(n) {
			texts = append(texts, strings.TrimSpace(opt.TextContent()))
		}
		return strings.Join(texts, ", ")
	case "progress", "meter":
		return n.AttrValue("value")
	}
	if IsEditable(n) {
		if n.valueProp != nil {
			return *n.valueProp
		}
		return strings.TrimSpace(n.TextContent())
	}
	if n.valueProp != nil {
		return *n.valueProp
	}
	return ""
}

// SetValue writes the live value property. For contenteditable hosts the
// text content is replaced as well, mirroring what assignment does in a page.
func SetValue(n *Node, value string) {
	v := value
	n.valueProp = &v
	if IsEditable(n) {
		n.RemoveChildren()
		n.AppendChild(NewText(value))
	}
}

// Checked reads the live checked property, falling back to the attribute.
func Checked(n *Node) bool {
	if n.checkedProp != nil {
		return *n.checkedProp
	}
	return n.HasAttr("checked")
}

// SetChecked writes the live checked property.
func SetChecked(n *Node, checked bool) {
	c := checked
	n.checkedProp = &c
}

// OptionSelected reads an option's live selection state, falling back to the
// selected attribute.
func OptionSelected(opt *Node) bool {
	if opt.selectedProp != nil {
		return *opt.selectedProp
	}
	return opt.HasAttr("selected")
}

// SetOptionSelected writes an option's live selection state.
func SetOptionSelected(opt *Node, selected bool) {
	s := selected
	opt.selectedProp = &s
}

// Options returns a select's option descendants in document order.
func Options(sel *Node) []*Node {
	var out []*Node
	sel.Walk(func(n *Node) bool {
		if n != sel && n.Type == ElementNode && n.Tag == "option" {
			out = append(out, n)
		}
		return true
	})
	return out
}

// SelectedOptions returns the currently selected options. A single select
// with no explicit selection falls back to its first enabled option, the way
// a browser renders one.
func SelectedOptions(sel *Node) []*Node {
	opts := Options(sel)
	var selected []*Node
	for _, opt := range opts {
		if OptionSelected(opt) {
			selected = append(selected, opt)
		}
	}
	if len(selected) == 0 && !sel.HasAttr("multiple") {
		for _, opt := range opts {
			if !OptionDisabled(opt) {
				return []*Node{opt}
			}
		}
	}
	return selected
}

// OptionValue returns the option's submission value: the value attribute
// when present, else its trimmed text.
func OptionValue(opt *Node) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.TextContent())
}

// OptionDisabled reports whether the option or its enclosing optgroup is
// disabled.
func OptionDisabled(opt *Node) bool {
	if opt.HasAttr("disabled") {
		return true
	}
	if group := opt.Closest("optgroup"); group != nil && group.HasAttr("disabled") {
		return true
	}
	return false
}

// Files returns the live file list of a file input.
func Files(n *Node) []File {
	return append([]File(nil), n.files...)
}

// SetFiles assigns the live file list of a file input.
func SetFiles(n *Node, files []File) {
	n.files = append([]File(nil), files...)
}

// IsTextEntry reports whether typeText may target the element: text-like
// inputs (textbox, searchbox, spinbutton, slider) and editable hosts.
func IsTextEntry(n *Node) bool {
	if IsEditable(n) {
		return true
	}
	switch Role(n) {
	case "textbox", "searchbox", "spinbutton", "slider":
		return true
	}
	return false
}

// Click performs the element's activation behavior: the default actions a
// real engine runs after an uncanceled click event. The caller is expected
// to have dispatched the pointer/mouse sequence already.
func Click(n *Node) {
	switch n.Tag {
	case "input":
		switch strings.ToLower(n.AttrValue("type")) {
		case "checkbox":
			SetChecked(n, !Checked(n))
			n.FireBubbling("input")
			n.FireBubbling("change")
		case "radio":
			selectRadio(n)
		case "submit":
			submitOwnerForm(n)
		}
	case "button":
		t := strings.ToLower(n.AttrValue("type"))
		if t == "" || t == "submit" {
			submitOwnerForm(n)
		}
	case "summary":
		toggleDetails(n)
	case "a":
		if href, ok := n.Attr("href"); ok {
			if doc := n.Owner(); doc != nil && doc.OnNavigate != nil {
				doc.OnNavigate(href)
			}
		}
	}
}

func selectRadio(n *Node) {
	name := n.AttrValue("name")
	if doc := n.Owner(); doc != nil && name != "" {
		group := n.Closest("form")
		var scope *Node
		if group != nil {
			scope = group
		} else {
			scope = doc.Root
		}
		scope.Walk(func(el *Node) bool {
			if el.Type == ElementNode && el.Tag == "input" &&
				strings.EqualFold(el.AttrValue("type"), "radio") &&
				el.AttrValue("name") == name {
				SetChecked(el, el == n)
			}
			return true
		})
	} else {
		SetChecked(n, true)
	}
	n.FireBubbling("input")
	n.FireBubbling("change")
}

func submitOwnerForm(n *Node) {
	form := n.Closest("form")
	if form == nil {
		return
	}
	SubmitForm(form, n)
}

// SubmitForm fires the cancelable submit event and, when uncanceled, hands
// the form to the document's submit hook.
func SubmitForm(form, submitter *Node) {
	if !form.FireBubbling("submit") {
		return
	}
	if doc := form.Owner(); doc != nil && doc.OnSubmit != nil {
		doc.OnSubmit(form, submitter)
	}
}

func toggleDetails(summary *Node) {
	details := summary.Closest("details")
	if details == nil {
		return
	}
	if details.HasAttr("open") {
		details.RemoveAttr("open")
	} else {
		details.SetAttr("open", "")
	}
	details.FireBubbling("toggle")
}
