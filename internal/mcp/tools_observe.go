package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"webclaw/internal/bridge"
	"webclaw/internal/config"
	"webclaw/internal/session"
)

// SnapshotTool implements page_snapshot.
type SnapshotTool struct {
	tabs     *session.Tabs
	defaults config.SnapshotConfig
}

func (t *SnapshotTool) Name() string { return "page_snapshot" }
func (t *SnapshotTool) Description() string {
	return `Capture a compact accessibility snapshot of the page.

Interactive elements carry opaque refs like @e3; pass a ref together with
the returned snapshotId to click, type_text, select_option, hover, and
drop_files. Refs expire on the next snapshot or navigation.`
}
func (t *SnapshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId":       map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
			"maxTokens":   map[string]interface{}{"type": "integer", "minimum": 1, "description": "Output budget (default 4000)"},
			"focusRegion": map[string]interface{}{"type": "string", "description": "Restrict to a landmark: main, nav, sidebar, header, footer, complementary, banner, contentinfo"},
		},
	}
}
func (t *SnapshotTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	maxTokens, err := requirePositive(args, "maxTokens", t.defaults.EffectiveMaxTokens())
	if err != nil {
		return nil, err
	}
	payload := &bridge.SnapshotRequest{
		MaxTokens:   maxTokens,
		FocusRegion: getStringArg(args, "focusRegion"),
	}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodSnapshot, payload)
	if err != nil {
		return nil, err
	}
	var result bridge.SnapshotResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	text := fmt.Sprintf("Page: %s\nURL: %s\nSnapshot ID: %s\n\n%s",
		result.Title, result.URL, result.SnapshotID, result.Text)
	return &Result{Text: text}, nil
}

// ScreenshotTool implements screenshot.
type ScreenshotTool struct {
	tabs *session.Tabs
}

func (t *ScreenshotTool) Name() string { return "screenshot" }
func (t *ScreenshotTool) Description() string {
	return "Capture the tab's visible viewport as a PNG image."
}
func (t *ScreenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId": map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
		},
	}
}
func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	payload := &bridge.ScreenshotRequest{}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodScreenshot, payload)
	if err != nil {
		return nil, err
	}
	var result bridge.ScreenshotResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return &Result{PNGData: result.Data}, nil
}
