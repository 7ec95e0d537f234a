package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		msg, err := NewRequest(MethodPing, nil)
		require.NoError(t, err)
		_, dup := seen[msg.ID]
		require.False(t, dup, "duplicate id %s", msg.ID)
		seen[msg.ID] = struct{}{}
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	req, err := NewRequest(MethodSnapshot, SnapshotRequest{MaxTokens: 100})
	require.NoError(t, err)

	resp, err := NewResponse(req, SnapshotResult{SnapshotID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, req.ID, resp.ID)
	assert.Equal(t, TypeResponse, resp.Type)
	assert.Equal(t, req.Method, resp.Method)

	ack := NewAck(req)
	assert.Equal(t, req.ID, ack.ID)
	assert.Equal(t, TypeAck, ack.Type)

	errMsg := NewErrorMessage(req, CodeStaleSnapshot, "take a new snapshot")
	assert.Equal(t, req.ID, errMsg.ID)
	assert.Equal(t, TypeError, errMsg.Type)
}

func TestEnvelopeJSONShape(t *testing.T) {
	req, err := NewRequest(MethodNavigate, NavigateRequest{URL: "https://example.test/"})
	require.NoError(t, err)

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "request", decoded["type"])
	assert.Equal(t, "navigate", decoded["method"])
	assert.NotEmpty(t, decoded["id"])
	assert.NotZero(t, decoded["timestamp"])

	var roundTrip Message
	require.NoError(t, json.Unmarshal(raw, &roundTrip))
	var payload NavigateRequest
	require.NoError(t, roundTrip.DecodePayload(&payload))
	assert.Equal(t, "https://example.test/", payload.URL)
}

func TestMethodTaxonomyIsClosed(t *testing.T) {
	known := []Method{
		MethodNavigate, MethodSnapshot, MethodClick, MethodHover,
		MethodTypeText, MethodSelectOption, MethodListWebMCPTools,
		MethodInvokeWebMCPTool, MethodScreenshot, MethodPing,
		MethodNewTab, MethodListTabs, MethodSwitchTab, MethodCloseTab,
		MethodGoBack, MethodGoForward, MethodReload,
		MethodWaitForNavigation, MethodScrollPage, MethodDropFiles,
	}
	assert.Len(t, known, 20)
	for _, m := range known {
		assert.True(t, m.Known(), string(m))
	}
	assert.False(t, Method("teleport").Known())
	assert.False(t, Method("").Known())
}

func TestErrorPayloadAsError(t *testing.T) {
	var err error = &ErrorPayload{Code: CodeTabNotFound, Message: "tab 7 does not exist"}
	assert.Equal(t, "TAB_NOT_FOUND: tab 7 does not exist", err.Error())
	assert.True(t, IsCode(err, CodeTabNotFound))
	assert.False(t, IsCode(err, CodeConnectionLost))

	be, ok := AsBridgeError(err)
	require.True(t, ok)
	assert.Equal(t, CodeTabNotFound, be.Code)

	_, ok = AsBridgeError(assert.AnError)
	assert.False(t, ok)
}

func TestTabRefScoping(t *testing.T) {
	var req SnapshotRequest
	_, ok := req.Tab()
	assert.False(t, ok)

	req.SetTab(7)
	id, ok := req.Tab()
	assert.True(t, ok)
	assert.Equal(t, 7, id)

	raw, err := json.Marshal(&req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"tabId":7`)
}
