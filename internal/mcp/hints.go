package mcp

import (
	"fmt"

	"webclaw/internal/bridge"
)

// recoveryHints tells the agent what to do after each bridge error code.
var recoveryHints = map[bridge.ErrorCode]string{
	bridge.CodeConnectionLost:     "The browser client disconnected; it reconnects automatically. Retry the call.",
	bridge.CodeTabNotFound:        "The target tab no longer exists. Omit tabId to use the session tab, or call list_tabs to pick another.",
	bridge.CodeStaleSnapshot:      "The snapshot is out of date. Take a new page_snapshot and retry with fresh refs.",
	bridge.CodeNavigationTimeout:  "The page did not reach ready state in time. Retry, or raise timeoutMs on wait_for_navigation.",
	bridge.CodeNoActiveTab:        "No tab could be resolved. Call navigate_to or new_tab first.",
	bridge.CodeUnknownMethod:      "The host and worker disagree on the protocol; update both to matching versions.",
	bridge.CodeHandlerError:       "The worker hit an unexpected error on the page. Take a snapshot to see the current state and retry.",
	bridge.CodeContentScriptError: "The page bridge is not available in this tab. Reload the tab and retry.",
	bridge.CodeScreenshotFailed:   "The browser refused to capture this page (restricted page or unsupported backend). Try another tab.",
}

// errorText renders a failure for the agent: the error itself, plus the
// recovery hint when the failure carries a bridge code.
func errorText(err error) string {
	if be, ok := bridge.AsBridgeError(err); ok {
		if hint, has := recoveryHints[be.Code]; has {
			return fmt.Sprintf("%s\n%s", be.Error(), hint)
		}
		return be.Error()
	}
	return err.Error()
}

// actionFailure converts a {success:false, error} bridge result into a tool
// error so the wrapper renders it with isError set.
func actionFailure(result bridge.ActionResult) error {
	return fmt.Errorf("action failed: %s", result.Error)
}
