package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode enumerates the canonical bridge error codes. Codes travel on the
// wire verbatim; the MCP tool surface appends a human-readable recovery hint.
type ErrorCode string

const (
	CodeConnectionLost     ErrorCode = "CONNECTION_LOST"
	CodeTabNotFound        ErrorCode = "TAB_NOT_FOUND"
	CodeStaleSnapshot      ErrorCode = "STALE_SNAPSHOT"
	CodeNavigationTimeout  ErrorCode = "NAVIGATION_TIMEOUT"
	CodeNoActiveTab        ErrorCode = "NO_ACTIVE_TAB"
	CodeUnknownMethod      ErrorCode = "UNKNOWN_METHOD"
	CodeHandlerError       ErrorCode = "HANDLER_ERROR"
	CodeContentScriptError ErrorCode = "CONTENT_SCRIPT_ERROR"
	CodeScreenshotFailed   ErrorCode = "SCREENSHOT_FAILED"
)

// ErrorPayload is the body of a type=error envelope.
type ErrorPayload struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error makes ErrorPayload usable as a Go error on the host side, so a
// bridge-level failure can flow through normal error returns.
func (e *ErrorPayload) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsBridgeError extracts an *ErrorPayload from an error chain.
func AsBridgeError(err error) (*ErrorPayload, bool) {
	var bridgeErr *ErrorPayload
	if errors.As(err, &bridgeErr) {
		return bridgeErr, true
	}
	return nil, false
}

// IsCode reports whether err is a bridge error with the given code.
func IsCode(err error, code ErrorCode) bool {
	if be, ok := AsBridgeError(err); ok {
		return be.Code == code
	}
	return false
}
