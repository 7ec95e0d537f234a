package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"webclaw/internal/bridge"
	"webclaw/internal/session"
)

// ListWebMCPToolsTool implements list_webmcp_tools.
type ListWebMCPToolsTool struct {
	tabs *session.Tabs
}

func (t *ListWebMCPToolsTool) Name() string { return "list_webmcp_tools" }
func (t *ListWebMCPToolsTool) Description() string {
	return "List the tools the page declares natively, or tools synthesized from its forms, buttons, links, and inputs."
}
func (t *ListWebMCPToolsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tabId": map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
		},
	}
}
func (t *ListWebMCPToolsTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	payload := &bridge.WebMCPToolsRequest{}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodListWebMCPTools, payload)
	if err != nil {
		return nil, err
	}
	var result bridge.WebMCPToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d WebMCP tool(s) available", len(result.Tools))
	for _, tool := range result.Tools {
		fmt.Fprintf(&sb, "\n- %s [%s]", tool.Name, tool.Source)
		if tool.Description != "" {
			fmt.Fprintf(&sb, ": %s", tool.Description)
		}
	}
	return &Result{Text: sb.String()}, nil
}

// InvokeWebMCPToolTool implements invoke_webmcp_tool.
type InvokeWebMCPToolTool struct {
	tabs *session.Tabs
}

func (t *InvokeWebMCPToolTool) Name() string { return "invoke_webmcp_tool" }
func (t *InvokeWebMCPToolTool) Description() string {
	return "Invoke a WebMCP tool by name with a JSON argument object."
}
func (t *InvokeWebMCPToolTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"toolName": map[string]interface{}{"type": "string", "description": "Name from list_webmcp_tools"},
			"args":     map[string]interface{}{"type": "object", "description": "Arguments matching the tool's inputSchema"},
			"tabId":    map[string]interface{}{"type": "integer", "description": "Optional explicit tab id"},
		},
		"required": []string{"toolName", "args"},
	}
}
func (t *InvokeWebMCPToolTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	toolName := getStringArg(args, "toolName")
	if toolName == "" {
		return nil, fmt.Errorf("toolName is required")
	}
	toolArgs, ok := args["args"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("args must be an object")
	}

	payload := &bridge.InvokeWebMCPToolRequest{ToolName: toolName, Args: toolArgs}
	applyTab(payload, args)

	raw, err := t.tabs.Call(ctx, bridge.MethodInvokeWebMCPTool, payload)
	if err != nil {
		return nil, err
	}
	var result bridge.InvokeWebMCPToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode invoke result: %w", err)
	}

	var pretty []byte
	var value any
	if err := json.Unmarshal(result.Result, &value); err == nil {
		pretty, _ = json.MarshalIndent(value, "", "  ")
	} else {
		pretty = result.Result
	}
	return &Result{Text: fmt.Sprintf("Tool %s returned:\n%s", toolName, pretty)}, nil
}
