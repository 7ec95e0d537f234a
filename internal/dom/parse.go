package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads an HTML document and builds the model rooted at <html>.
// The document title is captured from the first <title> element.
func Parse(r io.Reader, url string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	htmlEl := findElement(root, "html")
	if htmlEl == nil {
		return nil, fmt.Errorf("parse html: no root element")
	}

	converted := convert(htmlEl)
	doc := NewDocument(converted, url)
	if title := doc.Find(func(n *Node) bool { return n.Tag == "title" }); title != nil {
		doc.Title = strings.TrimSpace(title.TextContent())
	}
	return doc, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(markup, url string) (*Document, error) {
	return Parse(strings.NewReader(markup), url)
}

// SetInnerHTML replaces n's children with a parsed fragment. Previous
// children are detached, which is what invalidates any snapshot refs that
// pointed into the replaced subtree.
func SetInnerHTML(n *Node, fragment string) error {
	ctx := &html.Node{Type: html.ElementNode, Data: n.Tag, DataAtom: atom.Lookup([]byte(n.Tag))}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	n.RemoveChildren()
	for _, p := range parsed {
		if child := convert(p); child != nil {
			n.AppendChild(child)
		}
	}
	return nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func convert(src *html.Node) *Node {
	switch src.Type {
	case html.TextNode:
		return NewText(src.Data)
	case html.ElementNode:
		n := NewElement(src.Data)
		for _, a := range src.Attr {
			if a.Namespace != "" {
				continue
			}
			n.SetAttr(a.Key, a.Val)
		}
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			if child := convert(c); child != nil {
				n.AppendChild(child)
			}
		}
		return n
	default:
		// Comments, doctypes, and document wrappers carry nothing the
		// snapshot engine cares about.
		return nil
	}
}
