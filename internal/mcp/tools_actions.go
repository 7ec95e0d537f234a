package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webclaw/internal/bridge"
	"webclaw/internal/session"
)

// callAction routes an element action and converts a {success:false} result
// into a tool error.
func callAction(ctx context.Context, tabs *session.Tabs, method bridge.Method, payload *bridge.ActionRequest) (bridge.ActionResult, error) {
	raw, err := tabs.Call(ctx, method, payload)
	if err != nil {
		return bridge.ActionResult{}, err
	}
	var result bridge.ActionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return bridge.ActionResult{}, fmt.Errorf("decode action result: %w", err)
	}
	if !result.Success {
		return result, actionFailure(result)
	}
	return result, nil
}

// ClickTool implements click.
type ClickTool struct {
	tabs *session.Tabs
}

func (t *ClickTool) Name() string { return "click" }
func (t *ClickTool) Description() string {
	return "Click the element addressed by a snapshot ref."
}
func (t *ClickTool) InputSchema() map[string]interface{} {
	return refSchema(nil)
}
func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	ref, snapshotID, err := requireRef(args)
	if err != nil {
		return nil, err
	}
	payload := &bridge.ActionRequest{Ref: ref, SnapshotID: snapshotID}
	applyTab(payload, args)
	if _, err := callAction(ctx, t.tabs, bridge.MethodClick, payload); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Clicked %s", ref)}, nil
}

// HoverTool implements hover.
type HoverTool struct {
	tabs *session.Tabs
}

func (t *HoverTool) Name() string { return "hover" }
func (t *HoverTool) Description() string {
	return "Hover the pointer over the element addressed by a snapshot ref."
}
func (t *HoverTool) InputSchema() map[string]interface{} {
	return refSchema(nil)
}
func (t *HoverTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	ref, snapshotID, err := requireRef(args)
	if err != nil {
		return nil, err
	}
	payload := &bridge.ActionRequest{Ref: ref, SnapshotID: snapshotID}
	applyTab(payload, args)
	if _, err := callAction(ctx, t.tabs, bridge.MethodHover, payload); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Hovered over %s; hover-triggered content may now be visible in a fresh snapshot", ref)}, nil
}

// TypeTextTool implements type_text.
type TypeTextTool struct {
	tabs *session.Tabs
}

func (t *TypeTextTool) Name() string { return "type_text" }
func (t *TypeTextTool) Description() string {
	return "Type text into a text input, textarea, or contenteditable element."
}
func (t *TypeTextTool) InputSchema() map[string]interface{} {
	return refSchema(map[string]interface{}{
		"text":       map[string]interface{}{"type": "string", "description": "Text to enter"},
		"clearFirst": map[string]interface{}{"type": "boolean", "description": "Clear the field before typing (default true)"},
	}, "text")
}
func (t *TypeTextTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	ref, snapshotID, err := requireRef(args)
	if err != nil {
		return nil, err
	}
	if _, present := args["text"]; !present {
		return nil, fmt.Errorf("text is required")
	}
	text := getStringArg(args, "text")
	clearFirst := getBoolArg(args, "clearFirst", true)

	payload := &bridge.ActionRequest{Ref: ref, SnapshotID: snapshotID, Text: text, ClearFirst: &clearFirst}
	applyTab(payload, args)
	if _, err := callAction(ctx, t.tabs, bridge.MethodTypeText, payload); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Typed %q into %s", text, ref)}, nil
}

// SelectOptionTool implements select_option.
type SelectOptionTool struct {
	tabs *session.Tabs
}

func (t *SelectOptionTool) Name() string { return "select_option" }
func (t *SelectOptionTool) Description() string {
	return "Select an option in a <select> by value attribute or visible text."
}
func (t *SelectOptionTool) InputSchema() map[string]interface{} {
	return refSchema(map[string]interface{}{
		"value": map[string]interface{}{"type": "string", "description": "Option value or visible text"},
	}, "value")
}
func (t *SelectOptionTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	ref, snapshotID, err := requireRef(args)
	if err != nil {
		return nil, err
	}
	if _, present := args["value"]; !present {
		return nil, fmt.Errorf("value is required")
	}
	value := getStringArg(args, "value")

	payload := &bridge.ActionRequest{Ref: ref, SnapshotID: snapshotID, Value: value}
	applyTab(payload, args)
	if _, err := callAction(ctx, t.tabs, bridge.MethodSelectOption, payload); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Selected %q in %s", value, ref)}, nil
}

// ScrollPageTool implements scroll_page.
type ScrollPageTool struct {
	tabs *session.Tabs
}

func (t *ScrollPageTool) Name() string { return "scroll_page" }
func (t *ScrollPageTool) Description() string {
	return "Scroll the page by an amount, or scroll a referenced element into view."
}
func (t *ScrollPageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId":      map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
			"direction":  map[string]interface{}{"type": "string", "enum": []string{"up", "down"}, "description": "Scroll direction (default down)"},
			"amount":     map[string]interface{}{"type": "integer", "minimum": 1, "description": "Pixels to scroll (default one viewport)"},
			"ref":        map[string]interface{}{"type": "string", "pattern": `^@e\d+$`, "description": "Element to scroll into view"},
			"snapshotId": map[string]interface{}{"type": "string", "description": "Snapshot the ref came from (required with ref)"},
		},
	}
}
func (t *ScrollPageTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	payload := &bridge.ScrollRequest{}
	applyTab(payload, args)

	if ref := getStringArg(args, "ref"); ref != "" {
		var err error
		payload.Ref, payload.SnapshotID, err = requireRef(args)
		if err != nil {
			return nil, err
		}
	}
	if dir := getStringArg(args, "direction"); dir != "" {
		if dir != "up" && dir != "down" {
			return nil, fmt.Errorf("direction must be \"up\" or \"down\"")
		}
		payload.Direction = dir
	}
	amount, err := requirePositive(args, "amount", 0)
	if err != nil {
		return nil, err
	}
	payload.Amount = amount

	raw, err := t.tabs.Call(ctx, bridge.MethodScrollPage, payload)
	if err != nil {
		return nil, err
	}
	var result bridge.ActionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode action result: %w", err)
	}
	if !result.Success {
		return nil, actionFailure(result)
	}

	if payload.Ref != "" {
		return &Result{Text: fmt.Sprintf("Scrolled %s into view", payload.Ref)}, nil
	}
	dir := payload.Direction
	if dir == "" {
		dir = "down"
	}
	if amount > 0 {
		return &Result{Text: fmt.Sprintf("Scrolled %s %dpx", dir, amount)}, nil
	}
	return &Result{Text: fmt.Sprintf("Scrolled %s one viewport", dir)}, nil
}

// DropFilesTool implements drop_files. filePath entries are read by the host
// and converted to base64 before crossing the bridge.
type DropFilesTool struct {
	tabs *session.Tabs
}

func (t *DropFilesTool) Name() string { return "drop_files" }
func (t *DropFilesTool) Description() string {
	return "Drop files onto an element: assigns them to a file input, or dispatches a drag-and-drop sequence elsewhere."
}
func (t *DropFilesTool) InputSchema() map[string]interface{} {
	return refSchema(map[string]interface{}{
		"files": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":       map[string]interface{}{"type": "string"},
					"mimeType":   map[string]interface{}{"type": "string"},
					"base64Data": map[string]interface{}{"type": "string"},
					"filePath":   map[string]interface{}{"type": "string"},
				},
				"required": []string{"name", "mimeType"},
			},
			"description": "Files to drop; each carries base64Data or a filePath readable by the host",
		},
	}, "files")
}
func (t *DropFilesTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	ref, snapshotID, err := requireRef(args)
	if err != nil {
		return nil, err
	}
	entries, ok := args["files"].([]interface{})
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("files must be a non-empty array")
	}

	files := make([]bridge.FileStub, 0, len(entries))
	names := make([]string, 0, len(entries))
	for i, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("files[%d] must be an object", i)
		}
		stub, err := fileStub(entry, i)
		if err != nil {
			return nil, err
		}
		files = append(files, stub)
		names = append(names, stub.Name)
	}

	payload := &bridge.ActionRequest{Ref: ref, SnapshotID: snapshotID, Files: files}
	applyTab(payload, args)
	if _, err := callAction(ctx, t.tabs, bridge.MethodDropFiles, payload); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Dropped %d file(s) onto %s: %s", len(files), ref, strings.Join(names, ", "))}, nil
}

func fileStub(entry map[string]interface{}, index int) (bridge.FileStub, error) {
	name, _ := entry["name"].(string)
	mimeType, _ := entry["mimeType"].(string)
	if name == "" || mimeType == "" {
		return bridge.FileStub{}, fmt.Errorf("files[%d]: name and mimeType are required", index)
	}

	if data, ok := entry["base64Data"].(string); ok && data != "" {
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			return bridge.FileStub{}, fmt.Errorf("files[%d] (%s): base64Data is not valid base64", index, name)
		}
		return bridge.FileStub{Name: name, MimeType: mimeType, Base64Data: data}, nil
	}
	if path, ok := entry["filePath"].(string); ok && path != "" {
		raw, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return bridge.FileStub{}, fmt.Errorf("files[%d] (%s): %w", index, name, err)
		}
		return bridge.FileStub{Name: name, MimeType: mimeType, Base64Data: base64.StdEncoding.EncodeToString(raw)}, nil
	}
	return bridge.FileStub{}, fmt.Errorf("files[%d] (%s): base64Data or filePath is required", index, name)
}

// refSchema builds the common schema for ref-addressed actions, merging in
// extra properties; extraRequired lists additional required fields.
func refSchema(extra map[string]interface{}, extraRequired ...string) map[string]interface{} {
	props := map[string]interface{}{
		"ref":        map[string]interface{}{"type": "string", "pattern": `^@e\d+$`, "description": "Element handle from page_snapshot"},
		"snapshotId": map[string]interface{}{"type": "string", "description": "Snapshot the ref came from"},
		"tabId":      map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
	}
	for k, v := range extra {
		props[k] = v
	}
	required := append([]string{"ref", "snapshotId"}, extraRequired...)
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
