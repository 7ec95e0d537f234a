package dom

import (
	"encoding/json"
	"strings"
)

// Document owns a parsed page: the element tree, its identity, scroll state,
// and the hooks that connect in-document behavior (form submission, link
// navigation) back to the tab that hosts it.
type Document struct {
	Root  *Node
	URL   string
	Title string

	ScrollX int
	ScrollY int

	// ScrolledTo records the element most recently brought into view.
	ScrolledTo *Node

	// ModelContext, when non-nil, stands in for the page-world
	// navigator.modelContext registry of the WebMCP draft.
	ModelContext *ModelContext

	// OnSubmit is invoked when a form's default submit action fires.
	// The submitter is the button that triggered it, or nil.
	OnSubmit func(form, submitter *Node)
	// OnNavigate is invoked when a link's default action fires.
	OnNavigate func(href string)
}

// NewDocument wraps a root element as a document at the given URL.
func NewDocument(root *Node, url string) *Document {
	d := &Document{Root: root, URL: url}
	if root != nil {
		root.setOwner(root)
		root.docRef = d
	}
	return d
}

// GetElementByID returns the first element with the given id, or nil.
func (d *Document) GetElementByID(id string) *Node {
	if d.Root == nil || id == "" {
		return nil
	}
	var found *Node
	d.Root.Walk(func(n *Node) bool {
		if n.Type == ElementNode && n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Find returns the first element matching the predicate in document order.
func (d *Document) Find(pred func(*Node) bool) *Node {
	if d.Root == nil {
		return nil
	}
	var found *Node
	d.Root.Walk(func(n *Node) bool {
		if n.Type == ElementNode && pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element matching the predicate in document order.
func (d *Document) FindAll(pred func(*Node) bool) []*Node {
	var out []*Node
	if d.Root == nil {
		return out
	}
	d.Root.Walk(func(n *Node) bool {
		if n.Type == ElementNode && pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// ByTag returns every element with the given tag name.
func (d *Document) ByTag(tag string) []*Node {
	tag = strings.ToLower(tag)
	return d.FindAll(func(n *Node) bool { return n.Tag == tag })
}

// ModelContextTool is a native page-declared tool.
type ModelContextTool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     func(args map[string]any) (any, error)
}

// ModelContext is the registry pages use to declare tools natively.
type ModelContext struct {
	tools []ModelContextTool
}

// NewModelContext returns an empty registry; attaching one to a document is
// what makes the page "WebMCP-native".
func NewModelContext() *ModelContext { return &ModelContext{} }

// RegisterTool appends a tool declaration.
func (m *ModelContext) RegisterTool(t ModelContextTool) {
	m.tools = append(m.tools, t)
}

// Tools returns the declared tool set in registration order.
func (m *ModelContext) Tools() []ModelContextTool {
	return append([]ModelContextTool(nil), m.tools...)
}

// Tool returns a declared tool by name.
func (m *ModelContext) Tool(name string) (ModelContextTool, bool) {
	for _, t := range m.tools {
		if t.Name == name {
			return t, true
		}
	}
	return ModelContextTool{}, false
}
