package host

import (
	"time"

	"webclaw/internal/bridge"
)

// operationTimeouts are the per-method deadlines for a pending request.
// Navigation and WebMCP invocation round-trip through page loads; tab
// bookkeeping is near-instant.
var operationTimeouts = map[bridge.Method]time.Duration{
	bridge.MethodNavigate:          30 * time.Second,
	bridge.MethodNewTab:            30 * time.Second,
	bridge.MethodGoBack:            30 * time.Second,
	bridge.MethodGoForward:         30 * time.Second,
	bridge.MethodReload:            30 * time.Second,
	bridge.MethodWaitForNavigation: 30 * time.Second,
	bridge.MethodSnapshot:          15 * time.Second,
	bridge.MethodScreenshot:        15 * time.Second,
	bridge.MethodClick:             10 * time.Second,
	bridge.MethodHover:             10 * time.Second,
	bridge.MethodTypeText:          10 * time.Second,
	bridge.MethodSelectOption:      10 * time.Second,
	bridge.MethodScrollPage:        10 * time.Second,
	bridge.MethodInvokeWebMCPTool:  30 * time.Second,
	bridge.MethodDropFiles:         30 * time.Second,
	bridge.MethodListTabs:          5 * time.Second,
	bridge.MethodSwitchTab:         5 * time.Second,
	bridge.MethodCloseTab:          5 * time.Second,
	bridge.MethodListWebMCPTools:   10 * time.Second,
	bridge.MethodPing:              5 * time.Second,
}

// TimeoutFor returns the method's deadline, defaulting to 10 s for anything
// unlisted.
func TimeoutFor(method bridge.Method) time.Duration {
	if d, ok := operationTimeouts[method]; ok {
		return d
	}
	return 10 * time.Second
}
