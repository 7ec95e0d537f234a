package webmcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"webclaw/internal/dom"
)

// synthesize derives tools from the page structure: one per form, one per
// free-standing button, one per semantic link, one per standalone labeled
// input.
func synthesize(doc *dom.Document, tabID int) []bound {
	var out []bound
	seen := make(map[string]int)

	uniqueName := func(base string) string {
		seen[base]++
		if seen[base] == 1 {
			return base
		}
		return fmt.Sprintf("%s_%d", base, seen[base])
	}

	for i, form := range doc.ByTag("form") {
		label := firstNonEmpty(form.ID(), form.AttrValue("name"), form.AttrValue("aria-label"), fmt.Sprintf("%d", i+1))
		name := uniqueName("form_" + slug(label))
		out = append(out, bound{
			Tool: Tool{
				Name:        name,
				Description: fmt.Sprintf("Fill and submit the %s form", label),
				InputSchema: formSchema(form),
				Source:      SourceForm,
				TabID:       tabID,
				ElementRef:  idRef(form),
			},
			node: form,
		})
	}

	for _, btn := range doc.FindAll(isFreeButton) {
		label := buttonLabel(btn)
		if label == "" {
			continue
		}
		out = append(out, bound{
			Tool: Tool{
				Name:        uniqueName("button_" + slug(label)),
				Description: fmt.Sprintf("Click the %q button", label),
				InputSchema: emptySchema(),
				Source:      SourceButton,
				TabID:       tabID,
				ElementRef:  idRef(btn),
			},
			node: btn,
		})
	}

	for _, link := range doc.FindAll(isSemanticLink) {
		label := dom.AccessibleName(link)
		if label == "" {
			label = link.AttrValue("href")
		}
		out = append(out, bound{
			Tool: Tool{
				Name:        uniqueName("link_" + slug(label)),
				Description: fmt.Sprintf("Follow the %q link to %s", label, link.AttrValue("href")),
				InputSchema: emptySchema(),
				Source:      SourceLink,
				TabID:       tabID,
				ElementRef:  idRef(link),
			},
			node: link,
		})
	}

	for _, input := range doc.FindAll(isStandaloneInput) {
		label := dom.AccessibleName(input)
		if label == "" {
			continue
		}
		out = append(out, bound{
			Tool: Tool{
				Name:        uniqueName("input_" + slug(label)),
				Description: fmt.Sprintf("Set the %q input", label),
				InputSchema: valueSchema(),
				Source:      SourceInput,
				TabID:       tabID,
				ElementRef:  idRef(input),
			},
			node: input,
		})
	}

	return out
}

// SynthesizedTarget re-runs synthesis and returns the node behind a named
// tool plus its source. The live backend uses this to act on the real
// element instead of the parsed mirror.
func SynthesizedTarget(doc *dom.Document, tabID int, name string) (*dom.Node, string, bool) {
	for _, b := range synthesize(doc, tabID) {
		if b.Name == name {
			return b.node, b.Source, true
		}
	}
	return nil, "", false
}

// formFields returns the named controls of a form.
func formFields(form *dom.Node) []*dom.Node {
	var fields []*dom.Node
	form.Walk(func(n *dom.Node) bool {
		if n == form || n.Type != dom.ElementNode {
			return true
		}
		switch n.Tag {
		case "input", "select", "textarea":
			if n.AttrValue("name") != "" && !strings.EqualFold(n.AttrValue("type"), "hidden") {
				fields = append(fields, n)
			}
		}
		return true
	})
	return fields
}

// formSchema builds a JSON Schema object from the form's named fields.
func formSchema(form *dom.Node) json.RawMessage {
	props := make(map[string]any)
	var required []string
	for _, field := range formFields(form) {
		name := field.AttrValue("name")
		prop := map[string]any{"type": fieldType(field)}
		if label := dom.AccessibleName(field); label != "" {
			prop["description"] = label
		}
		props[name] = prop
		if field.HasAttr("required") {
			required = append(required, name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}

func fieldType(field *dom.Node) string {
	if field.Tag == "input" {
		switch strings.ToLower(field.AttrValue("type")) {
		case "checkbox":
			return "boolean"
		case "number", "range":
			return "number"
		}
	}
	return "string"
}

func isFreeButton(n *dom.Node) bool {
	if n.Tag != "button" {
		return false
	}
	return n.Closest("form") == nil
}

func isSemanticLink(n *dom.Node) bool {
	if n.Tag != "a" {
		return false
	}
	href := n.AttrValue("href")
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return false
	}
	return true
}

func isStandaloneInput(n *dom.Node) bool {
	if n.Tag != "input" {
		return false
	}
	switch strings.ToLower(n.AttrValue("type")) {
	case "hidden", "submit", "button", "reset", "image":
		return false
	}
	return n.Closest("form") == nil
}

func buttonLabel(n *dom.Node) string {
	if label := dom.AccessibleName(n); label != "" {
		return label
	}
	return ""
}

func emptySchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func valueSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`)
}

func slug(s string) string {
	var sb strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(sb.String(), "_")
}

func idRef(n *dom.Node) string {
	if id := n.ID(); id != "" {
		return "#" + id
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
