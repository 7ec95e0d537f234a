package snapshot

import (
	"fmt"
	"strings"

	"webclaw/internal/dom"
)

// line is one rendered snapshot row before budget pruning.
type line struct {
	text        string
	depth       int
	interactive bool
}

// containerRoles are structural roles emitted only when their subtree
// contains something worth showing.
var containerRoles = map[string]struct{}{
	"group": {}, "list": {}, "listitem": {}, "table": {}, "form": {}, "dialog": {},
}

// landmarkRoles are kept even when they contain no interactive descendants.
var landmarkRoles = map[string]struct{}{
	"nav": {}, "main": {}, "complementary": {}, "contentinfo": {}, "banner": {},
	"navigation": {}, "region": {}, "search": {},
}

// skippedTags never contribute to the accessibility view.
var skippedTags = map[string]struct{}{
	"script": {}, "style": {}, "template": {}, "head": {}, "meta": {},
	"link": {}, "noscript": {}, "title": {}, "option": {}, "optgroup": {},
	"legend": {},
}

type walker struct {
	lines   []line
	refs    map[string]*dom.Node
	nextRef int
}

// visit walks one element. Depth increases only below emitted lines so the
// indentation mirrors the compact tree, not the raw markup.
func (w *walker) visit(n *dom.Node, depth int) {
	if n.Type != dom.ElementNode || n.Tag == "#shadow-root" {
		return
	}
	if _, skip := skippedTags[n.Tag]; skip {
		return
	}
	if dom.DisplayNone(n) || dom.OpacityZero(n) {
		return
	}

	childDepth := depth
	if dom.ResolvedVisibility(n) != "hidden" {
		if emitted := w.emit(n, depth); emitted {
			childDepth = depth + 1
		}
	}

	for _, c := range n.Children {
		w.visit(c, childDepth)
	}
	if n.ShadowRoot != nil {
		for _, c := range n.ShadowRoot.Children {
			w.visit(c, childDepth)
		}
	}
}

func (w *walker) emit(n *dom.Node, depth int) bool {
	role := dom.Role(n)
	if dom.Interactive(n) {
		if role == "" {
			role = "generic"
		}
		w.nextRef++
		ref := fmt.Sprintf("@e%d", w.nextRef)
		w.refs[ref] = n
		w.lines = append(w.lines, line{
			text:        renderInteractive(ref, role, n),
			depth:       depth,
			interactive: true,
		})
		return true
	}
	if role == "" {
		return false
	}

	if _, isContainer := containerRoles[role]; isContainer {
		if !hasInteractiveDescendant(n) {
			_, isLandmark := landmarkRoles[role]
			if !isLandmark {
				return false
			}
		}
		w.lines = append(w.lines, line{text: renderContainer(role, n), depth: depth})
		return true
	}
	if _, isLandmark := landmarkRoles[role]; isLandmark {
		w.lines = append(w.lines, line{text: renderContainer(role, n), depth: depth})
		return true
	}

	// Leaf semantics: headings, status, progress, meter, named images.
	switch role {
	case "heading", "status", "alert", "paragraph":
		text := dom.CollapsedText(n)
		if text == "" {
			return false
		}
		w.lines = append(w.lines, line{text: fmt.Sprintf("[%s] %s", role, text), depth: depth})
		return true
	case "progressbar":
		w.lines = append(w.lines, line{text: renderProgress(role, n), depth: depth})
		return true
	case "meter":
		w.lines = append(w.lines, line{text: renderMeter(role, n), depth: depth})
		return true
	case "img":
		name := dom.AccessibleName(n)
		if name == "" {
			return false
		}
		w.lines = append(w.lines, line{text: fmt.Sprintf("[img %q]", name), depth: depth})
		return true
	}
	return false
}

func hasInteractiveDescendant(n *dom.Node) bool {
	found := false
	n.Walk(func(el *dom.Node) bool {
		if el != n && dom.Interactive(el) {
			found = true
			return false
		}
		return true
	})
	return found
}

// renderInteractive formats an interactive line:
//
//	[<ref> <role>( "<name>")?]( <value>)?( (<state>))*
func renderInteractive(ref, role string, n *dom.Node) string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(ref)
	sb.WriteByte(' ')
	sb.WriteString(role)
	if name := dom.AccessibleName(n); name != "" {
		fmt.Fprintf(&sb, " %q", name)
	}
	sb.WriteByte(']')

	if value := interactiveValue(role, n); value != "" {
		sb.WriteByte(' ')
		sb.WriteString(value)
	}
	for _, tag := range stateTags(role, n) {
		fmt.Fprintf(&sb, " (%s)", tag)
	}
	return sb.String()
}

func renderContainer(role string, n *dom.Node) string {
	name := dom.ExplicitName(n)
	if role == "group" {
		// Fieldsets are named by their legend.
		name = dom.AccessibleName(n)
	}
	if name != "" {
		return fmt.Sprintf("[%s %q]", role, name)
	}
	return fmt.Sprintf("[%s]", role)
}

func renderProgress(role string, n *dom.Node) string {
	value := n.AttrValue("value")
	max := n.AttrValue("max")
	label := renderContainer(role, n)
	switch {
	case value != "" && max != "":
		return fmt.Sprintf("%s %s/%s", label, value, max)
	case value != "":
		return fmt.Sprintf("%s %s", label, value)
	default:
		return label
	}
}

func renderMeter(role string, n *dom.Node) string {
	label := renderContainer(role, n)
	if value := n.AttrValue("value"); value != "" {
		return fmt.Sprintf("%s %s", label, value)
	}
	return label
}

func interactiveValue(role string, n *dom.Node) string {
	switch n.Tag {
	case "input":
		switch role {
		case "checkbox", "radio", "button":
			return ""
		}
		return dom.Value(n)
	case "textarea", "select":
		return dom.Value(n)
	}
	if dom.IsEditable(n) {
		return dom.Value(n)
	}
	return ""
}

// stateTags derives the parenthesized state suffix for interactive lines.
func stateTags(role string, n *dom.Node) []string {
	var tags []string
	switch role {
	case "checkbox", "radio", "switch":
		if state, mixed := checkedState(n); !mixed {
			if state {
				tags = append(tags, "checked")
			} else {
				tags = append(tags, "unchecked")
			}
		}
	case "button":
		switch strings.ToLower(n.AttrValue("aria-pressed")) {
		case "true":
			tags = append(tags, "pressed")
		case "false":
			tags = append(tags, "unpressed")
		}
	}
	if dom.Disabled(n) {
		tags = append(tags, "disabled")
	}
	return tags
}

// checkedState resolves boolean checked state; mixed suppresses the tag.
func checkedState(n *dom.Node) (checked, mixed bool) {
	if n.Tag == "input" {
		return dom.Checked(n), false
	}
	switch strings.ToLower(n.AttrValue("aria-checked")) {
	case "true":
		return true, false
	case "mixed":
		return false, true
	default:
		return false, false
	}
}
