package transport

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webclaw/internal/bridge"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(0)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func dialWithOrigin(s *Server, origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/", s.Port()), header)
}

func TestUpgradeRejectsWebOrigin(t *testing.T) {
	s := startServer(t)
	_, resp, err := dialWithOrigin(s, "https://evil.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpgradeAcceptsExtensionOrigins(t *testing.T) {
	s := startServer(t)
	for _, origin := range []string{
		"chrome-extension://abcdefg",
		"moz-extension://hijk",
		"safari-web-extension://lmno",
		"", // Node clients send no Origin at all
	} {
		ws, _, err := dialWithOrigin(s, origin)
		require.NoError(t, err, "origin %q", origin)
		_ = ws.Close()
	}
}

func TestHostHeaderValidation(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		ok     bool
	}{
		{"", "127.0.0.1:18080", true},
		{"", "localhost:18080", true},
		{"", "[::1]:18080", true},
		{"", "evil.com:18080", false},
		{"", "127.0.0.1:9999", false},
		{"chrome-extension://x", "", true},
		{"https://evil.com", "127.0.0.1:18080", false},
	}
	for _, tt := range tests {
		err := ValidateUpgrade(tt.origin, tt.host, 18080)
		if tt.ok {
			assert.NoError(t, err, "origin=%q host=%q", tt.origin, tt.host)
		} else {
			assert.Error(t, err, "origin=%q host=%q", tt.origin, tt.host)
		}
	}
}

func TestSecondClientSupersedesFirst(t *testing.T) {
	s := startServer(t)

	first, _, err := dialWithOrigin(s, "chrome-extension://one")
	require.NoError(t, err)
	defer first.Close()

	second, _, err := dialWithOrigin(s, "chrome-extension://two")
	require.NoError(t, err)
	defer second.Close()

	// The first connection is force-closed; its next read fails promptly.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, readErr := first.ReadMessage()
	assert.Error(t, readErr)

	// The second connection is the live one.
	msg, err := bridge.NewRequest(bridge.MethodPing, nil)
	require.NoError(t, err)
	require.NotNil(t, s.Current())
	require.NoError(t, s.Current().Send(msg))

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), msg.ID)
}

func TestServerDeliversParsedMessages(t *testing.T) {
	s := startServer(t)
	received := make(chan bridge.Message, 1)
	s.OnMessage = func(_ *Conn, msg bridge.Message) { received <- msg }

	ws, err := Dial(context.Background(), fmt.Sprintf("ws://127.0.0.1:%d", s.Port()))
	require.NoError(t, err)
	defer ws.Close()

	msg, err := bridge.NewRequest(bridge.MethodPing, nil)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(msg))

	select {
	case got := <-received:
		assert.Equal(t, msg.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
}
