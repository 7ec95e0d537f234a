package mcp

import (
	"fmt"
	"net/url"
	"regexp"

	"webclaw/internal/bridge"
)

// refPattern pins the opaque handle shape; anything else is rejected before
// the bridge is contacted.
var refPattern = regexp.MustCompile(`^@e\d+$`)

func getStringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func getBoolArg(args map[string]interface{}, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// getIntArg tolerates the float64 numbers JSON decoding produces.
func getIntArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// tabArg reads the optional tabId argument; ok is false when absent.
func tabArg(args map[string]interface{}) (int, bool) {
	switch v := args["tabId"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// applyTab stamps an explicit tabId onto a tab-scoped payload.
func applyTab(payload bridge.TabScoped, args map[string]interface{}) {
	if id, ok := tabArg(args); ok {
		payload.SetTab(id)
	}
}

// requireRef validates the ref and snapshotId pair every element action
// carries.
func requireRef(args map[string]interface{}) (ref, snapshotID string, err error) {
	ref = getStringArg(args, "ref")
	if ref == "" {
		return "", "", fmt.Errorf("ref is required")
	}
	if !refPattern.MatchString(ref) {
		return "", "", fmt.Errorf("ref %q is not a valid element handle (expected @e<number>)", ref)
	}
	snapshotID = getStringArg(args, "snapshotId")
	if snapshotID == "" {
		return "", "", fmt.Errorf("snapshotId is required")
	}
	return ref, snapshotID, nil
}

// requireURL validates an absolute http(s) URL.
func requireURL(args map[string]interface{}, key string) (string, error) {
	raw := getStringArg(args, key)
	if raw == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", fmt.Errorf("%s %q is not an absolute URL", key, raw)
	}
	switch u.Scheme {
	case "http", "https", "about", "file":
	default:
		return "", fmt.Errorf("%s scheme %q is not supported", key, u.Scheme)
	}
	return raw, nil
}

// requirePositive validates an optional integer argument that must be > 0
// when present. Returns fallback when absent.
func requirePositive(args map[string]interface{}, key string, fallback int) (int, error) {
	if _, present := args[key]; !present {
		return fallback, nil
	}
	v := getIntArg(args, key, 0)
	if v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return v, nil
}
