package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"webclaw/internal/bridge"
	"webclaw/internal/session"
)

func decodeNavigateResult(raw json.RawMessage) (bridge.NavigateResult, error) {
	var result bridge.NavigateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode navigation result: %w", err)
	}
	return result, nil
}

// NavigateTool implements navigate_to.
type NavigateTool struct {
	tabs *session.Tabs
}

func (t *NavigateTool) Name() string { return "navigate_to" }
func (t *NavigateTool) Description() string {
	return "Navigate the session tab (or an explicit tab) to a URL and wait for the page to load."
}
func (t *NavigateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":   map[string]interface{}{"type": "string", "format": "uri", "description": "Absolute URL to open"},
			"tabId": map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
		},
		"required": []string{"url"},
	}
}
func (t *NavigateTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	targetURL, err := requireURL(args, "url")
	if err != nil {
		return nil, err
	}
	payload := &bridge.NavigateRequest{URL: targetURL}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodNavigate, payload)
	if err != nil {
		return nil, err
	}
	result, err := decodeNavigateResult(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Navigated to: %s\nURL: %s\nTab: %d", result.Title, result.URL, result.TabID)}, nil
}

// NewTabTool implements new_tab. The new tab does not replace the session
// tab; it is an independent target the agent addresses explicitly.
type NewTabTool struct {
	bridge Requester
}

func (t *NewTabTool) Name() string { return "new_tab" }
func (t *NewTabTool) Description() string {
	return "Open a new browser tab, optionally at a URL, and report its id."
}
func (t *NewTabTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{"type": "string", "format": "uri", "description": "Optional URL to open in the new tab"},
		},
	}
}
func (t *NewTabTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	payload := &bridge.NewTabRequest{}
	if _, present := args["url"]; present {
		targetURL, err := requireURL(args, "url")
		if err != nil {
			return nil, err
		}
		payload.URL = targetURL
	}
	raw, err := t.bridge.RequestWithRetry(ctx, bridge.MethodNewTab, payload)
	if err != nil {
		return nil, err
	}
	result, err := decodeNavigateResult(raw)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Opened new tab (%d)", result.TabID)
	if result.URL != "" && result.URL != "about:blank" {
		text += fmt.Sprintf(" at %s", result.URL)
	}
	return &Result{Text: text}, nil
}

// ListTabsTool implements list_tabs.
type ListTabsTool struct {
	bridge Requester
}

func (t *ListTabsTool) Name() string { return "list_tabs" }
func (t *ListTabsTool) Description() string {
	return "List every open browser tab; the active tab is starred."
}
func (t *ListTabsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *ListTabsTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	raw, err := t.bridge.RequestWithRetry(ctx, bridge.MethodListTabs, nil)
	if err != nil {
		return nil, err
	}
	var result bridge.ListTabsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tab list: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tabs:", len(result.Tabs))
	for _, tab := range result.Tabs {
		sb.WriteByte('\n')
		if tab.Active {
			sb.WriteString("[*]")
		} else {
			sb.WriteString("[ ]")
		}
		fmt.Fprintf(&sb, "%d %s — %s", tab.ID, tab.Title, tab.URL)
	}
	return &Result{Text: sb.String()}, nil
}

// SwitchTabTool implements switch_tab.
type SwitchTabTool struct {
	bridge Requester
}

func (t *SwitchTabTool) Name() string { return "switch_tab" }
func (t *SwitchTabTool) Description() string {
	return "Make the given tab the active one."
}
func (t *SwitchTabTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId": map[string]interface{}{"type": "integer", "description": "Tab to activate"},
		},
		"required": []string{"tabId"},
	}
}
func (t *SwitchTabTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	id, ok := tabArg(args)
	if !ok {
		return nil, fmt.Errorf("tabId is required")
	}
	raw, err := t.bridge.RequestWithRetry(ctx, bridge.MethodSwitchTab, &bridge.TabTargetRequest{TabID: id})
	if err != nil {
		return nil, err
	}
	result, err := decodeNavigateResult(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Switched to tab %d: %s", id, result.URL)}, nil
}

// CloseTabTool implements close_tab.
type CloseTabTool struct {
	bridge Requester
}

func (t *CloseTabTool) Name() string { return "close_tab" }
func (t *CloseTabTool) Description() string {
	return "Close the given tab."
}
func (t *CloseTabTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId": map[string]interface{}{"type": "integer", "description": "Tab to close"},
		},
		"required": []string{"tabId"},
	}
}
func (t *CloseTabTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	id, ok := tabArg(args)
	if !ok {
		return nil, fmt.Errorf("tabId is required")
	}
	if _, err := t.bridge.RequestWithRetry(ctx, bridge.MethodCloseTab, &bridge.TabTargetRequest{TabID: id}); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Closed tab %d", id)}, nil
}

// HistoryTool implements go_back and go_forward.
type HistoryTool struct {
	tabs *session.Tabs
	back bool
}

func (t *HistoryTool) Name() string {
	if t.back {
		return "go_back"
	}
	return "go_forward"
}
func (t *HistoryTool) Description() string {
	if t.back {
		return "Go back one entry in the tab's history."
	}
	return "Go forward one entry in the tab's history."
}
func (t *HistoryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId": map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
		},
	}
}
func (t *HistoryTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	method := bridge.MethodGoBack
	if !t.back {
		method = bridge.MethodGoForward
	}
	payload := &bridge.NavigateRequest{}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, method, payload)
	if err != nil {
		return nil, err
	}
	result, err := decodeNavigateResult(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Went to: %s\nURL: %s", result.Title, result.URL)}, nil
}

// ReloadTool implements reload.
type ReloadTool struct {
	tabs *session.Tabs
}

func (t *ReloadTool) Name() string { return "reload" }
func (t *ReloadTool) Description() string {
	return "Reload the tab, optionally bypassing the cache."
}
func (t *ReloadTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId":       map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
			"bypassCache": map[string]interface{}{"type": "boolean", "description": "Force a fresh fetch"},
		},
	}
}
func (t *ReloadTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	payload := &bridge.NavigateRequest{BypassCache: getBoolArg(args, "bypassCache", false)}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodReload, payload)
	if err != nil {
		return nil, err
	}
	result, err := decodeNavigateResult(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Went to: %s\nURL: %s", result.Title, result.URL)}, nil
}

// WaitForNavigationTool implements wait_for_navigation.
type WaitForNavigationTool struct {
	tabs *session.Tabs
}

func (t *WaitForNavigationTool) Name() string { return "wait_for_navigation" }
func (t *WaitForNavigationTool) Description() string {
	return "Wait until the tab's document reaches ready state."
}
func (t *WaitForNavigationTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId":     map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
			"timeoutMs": map[string]interface{}{"type": "integer", "minimum": 1, "description": "Wait bound in milliseconds"},
		},
	}
}
func (t *WaitForNavigationTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	timeoutMs, err := requirePositive(args, "timeoutMs", 0)
	if err != nil {
		return nil, err
	}
	payload := &bridge.NavigateRequest{TimeoutMs: timeoutMs}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodWaitForNavigation, payload)
	if err != nil {
		return nil, err
	}
	result, err := decodeNavigateResult(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Page loaded: %s\nURL: %s", result.Title, result.URL)}, nil
}
