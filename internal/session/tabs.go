// Package session binds an agent session to its dedicated browser tab. The
// first implicitly routed tool call creates the tab; later calls stick to
// it; an externally closed tab is detected via TAB_NOT_FOUND and replaced
// transparently, replaying the original request exactly once.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"webclaw/internal/bridge"
)

// Requester is the slice of the connection manager the session layer needs.
type Requester interface {
	RequestWithRetry(ctx context.Context, method bridge.Method, payload any) (json.RawMessage, error)
}

// Tabs owns one session's dedicated tab id.
type Tabs struct {
	requester Requester

	mu    sync.Mutex
	tabID *int
}

// New builds the session tab router.
func New(requester Requester) *Tabs {
	return &Tabs{requester: requester}
}

// Current returns the cached session tab, if one has been assigned.
func (t *Tabs) Current() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tabID == nil {
		return 0, false
	}
	return *t.tabID, true
}

// Clear drops the cached tab id.
func (t *Tabs) Clear() {
	t.mu.Lock()
	t.tabID = nil
	t.mu.Unlock()
}

// Call routes a tab-scoped request. An explicit tab id on the payload is
// honored as-is and its errors surface unchanged. Implicit routing resolves
// the session tab (creating one on first use) and heals a TAB_NOT_FOUND by
// assigning a fresh tab and re-issuing the request once.
func (t *Tabs) Call(ctx context.Context, method bridge.Method, payload bridge.TabScoped) (json.RawMessage, error) {
	if _, explicit := payload.Tab(); explicit {
		return t.requester.RequestWithRetry(ctx, method, payload)
	}

	tabID, err := t.ensureTab(ctx)
	if err != nil {
		return nil, err
	}
	payload.SetTab(tabID)

	raw, err := t.requester.RequestWithRetry(ctx, method, payload)
	if err == nil || !bridge.IsCode(err, bridge.CodeTabNotFound) {
		return raw, err
	}

	// The dedicated tab was closed externally. Assign a fresh one and
	// replay exactly once.
	log.Printf("session tab %d is gone; assigning a fresh tab", tabID)
	t.Clear()
	tabID, err = t.ensureTab(ctx)
	if err != nil {
		return nil, err
	}
	payload.SetTab(tabID)
	return t.requester.RequestWithRetry(ctx, method, payload)
}

// ensureTab returns the session tab id, creating the dedicated tab lazily.
func (t *Tabs) ensureTab(ctx context.Context) (int, error) {
	t.mu.Lock()
	if t.tabID != nil {
		id := *t.tabID
		t.mu.Unlock()
		return id, nil
	}
	t.mu.Unlock()

	raw, err := t.requester.RequestWithRetry(ctx, bridge.MethodNewTab, &bridge.NewTabRequest{})
	if err != nil {
		return 0, fmt.Errorf("create session tab: %w", err)
	}
	var result bridge.NavigateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode newTab result: %w", err)
	}

	t.mu.Lock()
	t.tabID = &result.TabID
	t.mu.Unlock()
	log.Printf("session tab assigned: %d", result.TabID)
	return result.TabID, nil
}
