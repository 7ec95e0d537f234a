package transport

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webclaw/internal/bridge"
)

func frame(t *testing.T, body []byte) []byte {
	t.Helper()
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

func encode(t *testing.T, msg bridge.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewStdioWriter(&buf)
	require.NoError(t, w.Write(msg))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	msg, err := bridge.NewRequest(bridge.MethodPing, nil)
	require.NoError(t, err)

	r := NewStdioReader(nil)
	r.Feed(encode(t, msg))
	got, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, bridge.MethodPing, got.Method)
}

func TestMessageSplitAcrossChunks(t *testing.T) {
	msg, err := bridge.NewRequest(bridge.MethodSnapshot, bridge.SnapshotRequest{MaxTokens: 123})
	require.NoError(t, err)
	raw := encode(t, msg)

	r := NewStdioReader(nil)
	for i := 0; i < len(raw); i += 3 {
		end := i + 3
		if end > len(raw) {
			end = len(raw)
		}
		r.Feed(raw[i:end])
		if end < len(raw) {
			_, ok := r.Next()
			assert.False(t, ok, "message surfaced before the tail arrived")
		}
	}
	got, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)
}

func TestTwoMessagesInOneBuffer(t *testing.T) {
	first, err := bridge.NewRequest(bridge.MethodPing, nil)
	require.NoError(t, err)
	second, err := bridge.NewRequest(bridge.MethodListTabs, nil)
	require.NoError(t, err)

	r := NewStdioReader(nil)
	r.Feed(append(encode(t, first), encode(t, second)...))

	got1, ok := r.Next()
	require.True(t, ok)
	got2, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, first.ID, got1.ID)
	assert.Equal(t, second.ID, got2.ID)
	_, ok = r.Next()
	assert.False(t, ok)
}

func TestMalformedBodyDoesNotPoisonStream(t *testing.T) {
	good, err := bridge.NewRequest(bridge.MethodPing, nil)
	require.NoError(t, err)

	r := NewStdioReader(nil)
	r.Feed(frame(t, []byte(`{"id": truncated`)))
	r.Feed(encode(t, good))

	got, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, good.ID, got.ID)
}

func TestOversizedBodyIsChunkedAndReassembled(t *testing.T) {
	big := strings.Repeat("x", MaxFrameBody+4096)
	msg, err := bridge.NewRequest(bridge.MethodSnapshot, map[string]string{"blob": big})
	require.NoError(t, err)

	raw := encode(t, msg)
	// The writer split the body: no single frame may exceed the cap by much.
	size := binary.LittleEndian.Uint32(raw[:4])
	assert.Less(t, int(size), MaxFrameBody+1024)

	r := NewStdioReader(nil)
	r.Feed(raw)
	got, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)

	var payload map[string]string
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, big, payload["blob"])
}

func TestBlockingReadFromStream(t *testing.T) {
	msg, err := bridge.NewRequest(bridge.MethodPing, nil)
	require.NoError(t, err)

	r := NewStdioReader(bytes.NewReader(encode(t, msg)))
	got, readErr := r.Read()
	require.NoError(t, readErr)
	assert.Equal(t, msg.ID, got.ID)
}
