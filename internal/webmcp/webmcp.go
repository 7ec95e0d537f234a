// Package webmcp discovers page tools: either the native set a page declares
// through its model-context registry, or tools synthesized from the page's
// forms, buttons, links, and labeled inputs when no declaration exists.
package webmcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"webclaw/internal/dom"
)

// Page-bridge channel constants. The live-browser backend probes the page's
// main world over postMessage on this channel; the in-process backend reads
// the model-context registry directly.
const (
	ChannelName      = "webclaw-page-bridge"
	MsgDiscoverTools = "discover-webmcp-tools"
	MsgToolsResult   = "webmcp-tools-result"
	MsgInvoke        = "invoke"
	MsgInvokeResult  = "invoke-result"

	// DiscoveryTimeout bounds the main-world probe; expiry yields an
	// empty tool list, not an error.
	DiscoveryTimeout = 3 * time.Second
)

// Tool sources.
const (
	SourceNative = "webmcp-native"
	SourceForm   = "synthesized-form"
	SourceButton = "synthesized-button"
	SourceLink   = "synthesized-link"
	SourceInput  = "synthesized-input"
)

// Tool is one discovered page tool.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Source      string
	TabID       int
	ElementRef  string
}

// bound pairs a wire tool with the node it was synthesized from.
type bound struct {
	Tool
	node    *dom.Node
	handler func(args map[string]any) (any, error)
}

// Registry holds the most recent discovery for one tab so a later invoke can
// find its element again.
type Registry struct {
	mu    sync.Mutex
	tools []bound
}

// NewRegistry returns an empty per-tab registry.
func NewRegistry() *Registry { return &Registry{} }

// Discover rebuilds the tool set from the document and returns the wire
// form. A page with a model-context registry wins outright; synthesis only
// runs when no native declaration exists.
func (r *Registry) Discover(doc *dom.Document, tabID int) []Tool {
	var found []bound
	if doc != nil && doc.ModelContext != nil {
		for _, t := range doc.ModelContext.Tools() {
			found = append(found, bound{
				Tool: Tool{
					Name:        t.Name,
					Description: t.Description,
					InputSchema: t.InputSchema,
					Source:      SourceNative,
					TabID:       tabID,
				},
				handler: t.Handler,
			})
		}
	} else if doc != nil {
		found = synthesize(doc, tabID)
	}

	r.mu.Lock()
	r.tools = found
	r.mu.Unlock()

	out := make([]Tool, len(found))
	for i, b := range found {
		out[i] = b.Tool
	}
	return out
}

// Invoke runs a previously discovered tool by name. Native tools call their
// page handler; synthesized tools replay the corresponding interaction.
func (r *Registry) Invoke(doc *dom.Document, name string, args map[string]any) (any, error) {
	r.mu.Lock()
	var target *bound
	for i := range r.tools {
		if r.tools[i].Name == name {
			target = &r.tools[i]
			break
		}
	}
	r.mu.Unlock()

	if target == nil {
		return nil, fmt.Errorf("webmcp tool %q not found; list tools first", name)
	}
	if target.handler != nil {
		return target.handler(args)
	}
	if target.node == nil || !target.node.Connected() {
		return nil, fmt.Errorf("webmcp tool %q: element no longer attached", name)
	}

	switch target.Source {
	case SourceForm:
		return invokeForm(target.node, args)
	case SourceButton:
		clickNode(target.node)
		return map[string]any{"clicked": true}, nil
	case SourceLink:
		href := target.node.AttrValue("href")
		if doc != nil && doc.OnNavigate != nil {
			doc.OnNavigate(href)
		}
		return map[string]any{"navigated": href}, nil
	case SourceInput:
		value := fmt.Sprintf("%v", args["value"])
		dom.SetValue(target.node, value)
		target.node.FireBubbling("input")
		target.node.FireBubbling("change")
		return map[string]any{"value": value}, nil
	}
	return nil, fmt.Errorf("webmcp tool %q has unknown source %q", name, target.Source)
}

func invokeForm(form *dom.Node, args map[string]any) (any, error) {
	filled := make([]string, 0, len(args))
	for _, field := range formFields(form) {
		fname := field.AttrValue("name")
		raw, ok := args[fname]
		if !ok {
			continue
		}
		switch {
		case field.Tag == "input" && strings.EqualFold(field.AttrValue("type"), "checkbox"):
			dom.SetChecked(field, raw == true || raw == "true" || raw == "on")
		case field.Tag == "select":
			setSelectValue(field, fmt.Sprintf("%v", raw))
		default:
			dom.SetValue(field, fmt.Sprintf("%v", raw))
		}
		field.FireBubbling("input")
		field.FireBubbling("change")
		filled = append(filled, fname)
	}
	dom.SubmitForm(form, nil)
	return map[string]any{"submitted": true, "fields": filled}, nil
}

func setSelectValue(sel *dom.Node, value string) {
	for _, opt := range dom.Options(sel) {
		dom.SetOptionSelected(opt, dom.OptionValue(opt) == value)
	}
}

func clickNode(n *dom.Node) {
	n.FireBubbling("pointerdown")
	n.FireBubbling("mousedown")
	n.FireBubbling("pointerup")
	n.FireBubbling("mouseup")
	if n.FireBubbling("click") {
		dom.Click(n)
	}
}
