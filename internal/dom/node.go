// Package dom implements the lightweight document model the worker operates
// on: parsed markup, inline-style resolution, ARIA role and accessible-name
// computation, form control state, and synthetic event dispatch. The snapshot
// engine and action executor are written against this model; the live-browser
// backend feeds it serialized page HTML.
package dom

import "strings"

// NodeType distinguishes the node kinds the model keeps after parsing.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Node is a single element or text node. Form-control state (value, checked,
// selection, files) lives on the node as properties, distinct from the
// attributes it was parsed with. That split is what the executor relies on
// when it types into an input without touching the value attribute.
type Node struct {
	Type     NodeType
	Tag      string // lowercase element name, empty for text nodes
	Data     string // text content for text nodes
	Parent   *Node
	Children []*Node

	// ShadowRoot holds an attached open shadow tree. Traversal descends
	// into it after the light children.
	ShadowRoot *Node

	attrs     map[string]string
	attrOrder []string

	// Form-control properties. nil means "never set": readers fall back
	// to the corresponding attribute.
	valueProp    *string
	checkedProp  *bool
	selectedProp *bool
	files        []File

	listeners map[string][]Listener

	doc    *Node     // document root this node is connected under, set on attach
	docRef *Document // owning Document, set on the root by NewDocument
}

// Owner returns the Document this node belongs to, or nil when detached.
func (n *Node) Owner() *Document {
	if n.doc == nil {
		return nil
	}
	return n.doc.docRef
}

// File is a dropped or assigned file on a file input.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// NewElement creates a detached element node.
func NewElement(tag string) *Node {
	return &Node{Type: ElementNode, Tag: strings.ToLower(tag)}
}

// NewText creates a detached text node.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

// Attr returns the attribute value and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[strings.ToLower(name)]
	return v, ok
}

// AttrValue returns the attribute value or "" when absent.
func (n *Node) AttrValue(name string) string {
	v := n.attrs[strings.ToLower(name)]
	return v
}

// HasAttr reports attribute presence regardless of value.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.attrs[strings.ToLower(name)]
	return ok
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(name, value string) {
	name = strings.ToLower(name)
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	if _, ok := n.attrs[name]; !ok {
		n.attrOrder = append(n.attrOrder, name)
	}
	n.attrs[name] = value
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(name string) {
	name = strings.ToLower(name)
	if _, ok := n.attrs[name]; !ok {
		return
	}
	delete(n.attrs, name)
	for i, a := range n.attrOrder {
		if a == name {
			n.attrOrder = append(n.attrOrder[:i], n.attrOrder[i+1:]...)
			break
		}
	}
}

// ID returns the element's id attribute.
func (n *Node) ID() string { return n.AttrValue("id") }

// AppendChild attaches child as the last child of n.
func (n *Node) AppendChild(child *Node) {
	child.Parent = n
	child.setOwner(n.doc)
	n.Children = append(n.Children, child)
}

// RemoveChildren detaches every child, marking the subtree disconnected.
func (n *Node) RemoveChildren() {
	for _, c := range n.Children {
		c.Parent = nil
		c.setOwner(nil)
	}
	n.Children = nil
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	p := n.Parent
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	n.Parent = nil
	n.setOwner(nil)
}

// AttachShadow attaches an open shadow root built from the given children.
func (n *Node) AttachShadow(children ...*Node) *Node {
	root := &Node{Type: ElementNode, Tag: "#shadow-root"}
	root.Parent = n
	root.setOwner(n.doc)
	for _, c := range children {
		root.AppendChild(c)
	}
	n.ShadowRoot = root
	return root
}

func (n *Node) setOwner(doc *Node) {
	n.doc = doc
	for _, c := range n.Children {
		c.setOwner(doc)
	}
	if n.ShadowRoot != nil {
		n.ShadowRoot.setOwner(doc)
	}
}

// Connected reports whether n is still attached under its document root.
// The executor uses this as the staleness check for resolved refs.
func (n *Node) Connected() bool {
	if n.doc == nil {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == n.doc {
			return true
		}
	}
	return false
}

// TextContent concatenates all descendant text, shadow content included.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.collectText(&sb)
	return sb.String()
}

func (n *Node) collectText(sb *strings.Builder) {
	if n.Type == TextNode {
		sb.WriteString(n.Data)
		return
	}
	for _, c := range n.Children {
		c.collectText(sb)
	}
	if n.ShadowRoot != nil {
		n.ShadowRoot.collectText(sb)
	}
}

// CollapsedText returns the node's text content with runs of whitespace
// collapsed to single spaces and the ends trimmed.
func CollapsedText(n *Node) string {
	return strings.Join(strings.Fields(n.TextContent()), " ")
}

// Ancestors iterates n's ancestor chain from parent to root. Shadow roots
// delegate to their host so disabled/visibility state crosses the boundary.
func (n *Node) Ancestors(fn func(*Node) bool) {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Tag == "#shadow-root" {
			continue
		}
		if !fn(cur) {
			return
		}
	}
}

// Walk visits n and every descendant element in document order, descending
// into open shadow roots after light children.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	if n.ShadowRoot != nil {
		for _, c := range n.ShadowRoot.Children {
			if !c.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// Closest returns the nearest ancestor-or-self element with the given tag.
func (n *Node) Closest(tag string) *Node {
	tag = strings.ToLower(tag)
	if n.Type == ElementNode && n.Tag == tag {
		return n
	}
	var found *Node
	n.Ancestors(func(a *Node) bool {
		if a.Tag == tag {
			found = a
			return false
		}
		return true
	})
	return found
}
