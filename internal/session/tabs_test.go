package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webclaw/internal/bridge"
)

// scriptedBridge records every request and plays back queued responses.
type scriptedBridge struct {
	calls     []call
	nextTabID int
	failures  map[bridge.Method][]error
}

type call struct {
	method bridge.Method
	tabID  int
	hasTab bool
}

func newScriptedBridge() *scriptedBridge {
	return &scriptedBridge{nextTabID: 99, failures: make(map[bridge.Method][]error)}
}

func (s *scriptedBridge) failNext(method bridge.Method, err error) {
	s.failures[method] = append(s.failures[method], err)
}

func (s *scriptedBridge) RequestWithRetry(_ context.Context, method bridge.Method, payload any) (json.RawMessage, error) {
	c := call{method: method}
	if scoped, ok := payload.(bridge.TabScoped); ok && payload != nil {
		c.tabID, c.hasTab = scoped.Tab()
	}
	s.calls = append(s.calls, c)

	if queue := s.failures[method]; len(queue) > 0 {
		err := queue[0]
		s.failures[method] = queue[1:]
		if err != nil {
			return nil, err
		}
	}

	switch method {
	case bridge.MethodNewTab:
		s.nextTabID++
		raw, _ := json.Marshal(bridge.NavigateResult{URL: "about:blank", TabID: s.nextTabID})
		return raw, nil
	default:
		raw, _ := json.Marshal(bridge.NavigateResult{URL: "https://example.test/", TabID: c.tabID})
		return raw, nil
	}
}

func methods(calls []call) []bridge.Method {
	out := make([]bridge.Method, len(calls))
	for i, c := range calls {
		out[i] = c.method
	}
	return out
}

func TestFirstImplicitCallCreatesDedicatedTab(t *testing.T) {
	b := newScriptedBridge()
	tabs := New(b)

	_, err := tabs.Call(context.Background(), bridge.MethodSnapshot, &bridge.SnapshotRequest{})
	require.NoError(t, err)

	require.Equal(t, []bridge.Method{bridge.MethodNewTab, bridge.MethodSnapshot}, methods(b.calls))
	assert.True(t, b.calls[1].hasTab)
	assert.Equal(t, 100, b.calls[1].tabID)

	id, ok := tabs.Current()
	require.True(t, ok)
	assert.Equal(t, 100, id)
}

func TestSessionTabSticksAcrossCalls(t *testing.T) {
	b := newScriptedBridge()
	tabs := New(b)

	_, err := tabs.Call(context.Background(), bridge.MethodSnapshot, &bridge.SnapshotRequest{})
	require.NoError(t, err)
	_, err = tabs.Call(context.Background(), bridge.MethodGoBack, &bridge.NavigateRequest{})
	require.NoError(t, err)
	_, err = tabs.Call(context.Background(), bridge.MethodClick, &bridge.ActionRequest{Ref: "@e1"})
	require.NoError(t, err)

	// Exactly one newTab across the whole session.
	assert.Equal(t, []bridge.Method{
		bridge.MethodNewTab, bridge.MethodSnapshot,
		bridge.MethodGoBack, bridge.MethodClick,
	}, methods(b.calls))
	assert.Equal(t, 100, b.calls[2].tabID)
	assert.Equal(t, 100, b.calls[3].tabID)
}

func TestTabNotFoundRecovery(t *testing.T) {
	// S6: the dedicated tab is closed externally; the next implicit call
	// fails TAB_NOT_FOUND, gets a fresh tab, and is replayed once.
	b := newScriptedBridge()
	tabs := New(b)

	_, err := tabs.Call(context.Background(), bridge.MethodSnapshot, &bridge.SnapshotRequest{})
	require.NoError(t, err)

	b.failNext(bridge.MethodGoBack, &bridge.ErrorPayload{Code: bridge.CodeTabNotFound, Message: "tab 100 does not exist"})
	_, err = tabs.Call(context.Background(), bridge.MethodGoBack, &bridge.NavigateRequest{})
	require.NoError(t, err)

	require.Equal(t, []bridge.Method{
		bridge.MethodNewTab, bridge.MethodSnapshot,
		bridge.MethodGoBack, // fails TAB_NOT_FOUND on tab 100
		bridge.MethodNewTab, // fresh tab 101
		bridge.MethodGoBack, // replayed once on the new tab
	}, methods(b.calls))
	assert.Equal(t, 100, b.calls[2].tabID)
	assert.Equal(t, 101, b.calls[4].tabID)

	id, _ := tabs.Current()
	assert.Equal(t, 101, id)
}

func TestRecoveryReplaysOnlyOnce(t *testing.T) {
	b := newScriptedBridge()
	tabs := New(b)

	_, err := tabs.Call(context.Background(), bridge.MethodSnapshot, &bridge.SnapshotRequest{})
	require.NoError(t, err)

	stillGone := &bridge.ErrorPayload{Code: bridge.CodeTabNotFound, Message: "gone"}
	b.failNext(bridge.MethodGoBack, stillGone)
	b.failNext(bridge.MethodGoBack, stillGone)

	_, err = tabs.Call(context.Background(), bridge.MethodGoBack, &bridge.NavigateRequest{})
	require.Error(t, err)
	assert.True(t, bridge.IsCode(err, bridge.CodeTabNotFound))
	// newTab, snapshot, goBack, newTab, goBack. No third attempt.
	assert.Len(t, b.calls, 5)
}

func TestExplicitTabErrorsSurfaceUnchanged(t *testing.T) {
	b := newScriptedBridge()
	tabs := New(b)

	payload := &bridge.NavigateRequest{}
	payload.SetTab(42)
	b.failNext(bridge.MethodGoBack, &bridge.ErrorPayload{Code: bridge.CodeTabNotFound, Message: "tab 42 does not exist"})

	_, err := tabs.Call(context.Background(), bridge.MethodGoBack, payload)
	require.Error(t, err)
	assert.True(t, bridge.IsCode(err, bridge.CodeTabNotFound))
	// No newTab, no replay: the agent named the tab, it gets the truth.
	require.Equal(t, []bridge.Method{bridge.MethodGoBack}, methods(b.calls))
	assert.Equal(t, 42, b.calls[0].tabID)

	_, ok := tabs.Current()
	assert.False(t, ok)
}

func TestOtherErrorsDoNotTriggerRecovery(t *testing.T) {
	b := newScriptedBridge()
	tabs := New(b)

	b.failNext(bridge.MethodNavigate, &bridge.ErrorPayload{Code: bridge.CodeNavigationTimeout, Message: "slow"})
	_, err := tabs.Call(context.Background(), bridge.MethodNavigate, &bridge.NavigateRequest{URL: "https://x.test/"})
	require.Error(t, err)
	assert.True(t, bridge.IsCode(err, bridge.CodeNavigationTimeout))
	assert.Equal(t, []bridge.Method{bridge.MethodNewTab, bridge.MethodNavigate}, methods(b.calls))
}
