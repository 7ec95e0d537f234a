package bridge

import "encoding/json"

// TabScoped is implemented by request payloads that may be routed to a tab.
// The session manager uses it to stamp the effective tab id before a request
// leaves the host.
type TabScoped interface {
	SetTab(id int)
	Tab() (id int, ok bool)
}

// TabRef embeds an optional tab id into a request payload.
type TabRef struct {
	TabID *int `json:"tabId,omitempty"`
}

func (t *TabRef) SetTab(id int) { t.TabID = &id }

func (t *TabRef) Tab() (int, bool) {
	if t.TabID == nil {
		return 0, false
	}
	return *t.TabID, true
}

// NavigateRequest drives navigate, goBack, goForward, reload, and
// waitForNavigation. URL is only meaningful for navigate; BypassCache only
// for reload; TimeoutMs only for waitForNavigation.
type NavigateRequest struct {
	TabRef
	URL         string `json:"url,omitempty"`
	BypassCache bool   `json:"bypassCache,omitempty"`
	TimeoutMs   int    `json:"timeoutMs,omitempty"`
}

// NavigateResult is returned by every navigation-family method.
type NavigateResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	TabID int    `json:"tabId"`
}

// SnapshotRequest asks for a compact accessibility snapshot.
type SnapshotRequest struct {
	TabRef
	MaxTokens   int    `json:"maxTokens,omitempty"`
	FocusRegion string `json:"focusRegion,omitempty"`
}

// SnapshotResult carries the rendered snapshot and its identity.
type SnapshotResult struct {
	Text       string `json:"text"`
	SnapshotID string `json:"snapshotId"`
	URL        string `json:"url"`
	Title      string `json:"title"`
}

// ActionRequest drives click, hover, typeText, selectOption, and dropFiles.
// Ref and SnapshotID bind the action to an element the agent has observed.
type ActionRequest struct {
	TabRef
	Ref        string     `json:"ref"`
	SnapshotID string     `json:"snapshotId"`
	Text       string     `json:"text,omitempty"`
	ClearFirst *bool      `json:"clearFirst,omitempty"`
	Value      string     `json:"value,omitempty"`
	Files      []FileStub `json:"files,omitempty"`
}

// FileStub is one file for dropFiles, already base64-encoded by the host.
type FileStub struct {
	Name       string `json:"name"`
	MimeType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
}

// ActionResult is the uniform executor outcome. Error strings are stable
// enough to match on ("disabled", "not found", "not a text input",
// "not a select").
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ScrollRequest scrolls the window or brings a referenced element into view.
type ScrollRequest struct {
	TabRef
	Direction  string `json:"direction,omitempty"`
	Amount     int    `json:"amount,omitempty"`
	Ref        string `json:"ref,omitempty"`
	SnapshotID string `json:"snapshotId,omitempty"`
}

// ScreenshotRequest captures the visible viewport of a tab.
type ScreenshotRequest struct {
	TabRef
}

// ScreenshotResult carries the capture as base64.
type ScreenshotResult struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// NewTabRequest opens a dedicated tab, optionally at a URL.
type NewTabRequest struct {
	URL string `json:"url,omitempty"`
}

// TabInfo describes one open tab for listTabs.
type TabInfo struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// ListTabsResult enumerates the worker's tabs.
type ListTabsResult struct {
	Tabs []TabInfo `json:"tabs"`
}

// TabTargetRequest addresses switchTab and closeTab, where the tab id is
// required rather than optional.
type TabTargetRequest struct {
	TabID int `json:"tabId"`
}

func (t *TabTargetRequest) SetTab(id int)    { t.TabID = id }
func (t *TabTargetRequest) Tab() (int, bool) { return t.TabID, true }

// WebMCPToolsRequest lists page-declared or synthesized tools.
type WebMCPToolsRequest struct {
	TabRef
}

// WebMCPTool is the wire form of a discovered tool.
type WebMCPTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	Source      string          `json:"source"`
	TabID       int             `json:"tabId"`
	ElementRef  string          `json:"elementRef,omitempty"`
}

// WebMCPToolsResult carries the discovered tool set.
type WebMCPToolsResult struct {
	Tools []WebMCPTool `json:"tools"`
}

// InvokeWebMCPToolRequest invokes a discovered tool by name.
type InvokeWebMCPToolRequest struct {
	TabRef
	ToolName string         `json:"toolName"`
	Args     map[string]any `json:"args"`
}

// InvokeWebMCPToolResult wraps the tool's raw result value.
type InvokeWebMCPToolResult struct {
	Result json.RawMessage `json:"result"`
}

// PingResult answers a liveness probe.
type PingResult struct {
	OK bool `json:"ok"`
}
