package dom

import (
	"strconv"
	"strings"
)

// Style holds the subset of computed style the snapshot engine needs.
// Only inline declarations are considered; the model does not run a CSS
// cascade.
type Style struct {
	Display    string
	Visibility string
	Opacity    string
	Position   string
}

// InlineStyle parses the node's style attribute.
func InlineStyle(n *Node) Style {
	var s Style
	raw, ok := n.Attr("style")
	if !ok {
		return s
	}
	for _, decl := range strings.Split(raw, ";") {
		name, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.ToLower(strings.TrimSpace(value))
		switch name {
		case "display":
			s.Display = value
		case "visibility":
			s.Visibility = value
		case "opacity":
			s.Opacity = value
		case "position":
			s.Position = value
		}
	}
	return s
}

// DisplayNone reports whether the node itself declares display:none.
// Display does not inherit; subtree pruning happens at traversal time.
func DisplayNone(n *Node) bool {
	if n.Type != ElementNode {
		return false
	}
	if n.HasAttr("hidden") {
		return true
	}
	return InlineStyle(n).Display == "none"
}

// ResolvedVisibility computes the inherited visibility for n: the nearest
// ancestor-or-self declaration wins, so a visibility:visible child inside a
// visibility:hidden parent is visible again.
func ResolvedVisibility(n *Node) string {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Tag == "#shadow-root" {
			continue
		}
		if v := InlineStyle(cur).Visibility; v != "" {
			return v
		}
	}
	return "visible"
}

// OpacityZero reports whether the node declares opacity:0. Unlike
// visibility, opacity composes multiplicatively in a real engine, so a zero
// anywhere hides the whole subtree; the traversal prunes at the declaring
// node.
func OpacityZero(n *Node) bool {
	raw := InlineStyle(n).Opacity
	if raw == "" {
		return false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	return v == 0
}
