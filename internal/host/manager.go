// Package host owns the MCP-side half of the bridge: binding the WebSocket
// port, lazily launching a browser when no client is attached, correlating
// requests with responses, and retrying transport-level failures.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"

	"webclaw/internal/bridge"
	"webclaw/internal/transport"
)

// Port scan bounds when WEBCLAW_PORT does not force a port. Each host
// process binds its own port, which is how concurrent sessions coexist.
const (
	PortRangeStart = 18080
	PortRangeEnd   = 18089
)

// Connection and retry tuning.
const (
	ConnectWait      = 15 * time.Second
	MaxRetryAttempts = 2
	RetryBaseDelay   = 500 * time.Millisecond
)

// ErrPortSaturated reports that every port in the scan range is taken.
var ErrPortSaturated = fmt.Errorf("all ports %d-%d are in use; stop another webclaw host or set WEBCLAW_PORT", PortRangeStart, PortRangeEnd)

// transportError marks a send-level failure: the one class of error that
// justifies a retry. Error payload responses are never wrapped in this.
type transportError struct{ err error }

func (t *transportError) Error() string { return t.err.Error() }
func (t *transportError) Unwrap() error { return t.err }

// IsTransportError reports whether err came from the transport rather than
// the worker.
func IsTransportError(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

type pendingRequest struct {
	ch chan outcome
}

type outcome struct {
	payload json.RawMessage
	err     error
}

// Manager is the connection manager: one WebSocket server, at most one
// client, and the pending-request correlation table.
type Manager struct {
	server *transport.Server

	mu        sync.Mutex
	conn      *transport.Conn
	pending   map[string]*pendingRequest
	connected chan struct{} // closed while a client is attached

	launchMu       sync.Mutex
	chromeLaunched bool
	launch         func() error
}

// New prepares a manager over an unbound server for the given port.
func New(port int) *Manager {
	m := &Manager{
		server:    transport.NewServer(port),
		pending:   make(map[string]*pendingRequest),
		connected: make(chan struct{}),
		launch:    LaunchBrowser,
	}
	m.server.OnConnect = m.onConnect
	m.server.OnDisconnect = m.onDisconnect
	m.server.OnMessage = m.onMessage
	return m
}

// Bind selects and binds the port: a forced port when forcedPort > 0, else
// the first free port in the scan range. Callers map the returned error to
// exit code 1.
func Bind(forcedPort int) (*Manager, error) {
	if forcedPort > 0 {
		m := New(forcedPort)
		if err := m.server.Start(); err != nil {
			return nil, fmt.Errorf("cannot bind WEBCLAW_PORT %d: %w", forcedPort, err)
		}
		return m, nil
	}
	for port := PortRangeStart; port <= PortRangeEnd; port++ {
		m := New(port)
		if err := m.server.Start(); err == nil {
			return m, nil
		}
	}
	return nil, ErrPortSaturated
}

// Start binds the manager's own server. Bind is the production path; tests
// construct a manager on port 0 and start it directly.
func (m *Manager) Start() error { return m.server.Start() }

// Port reports the bound port.
func (m *Manager) Port() int { return m.server.Port() }

// Connected reports whether a client is currently attached.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// SetLauncher overrides the browser launcher; tests inject a fake.
func (m *Manager) SetLauncher(fn func() error) { m.launch = fn }

func (m *Manager) onConnect(conn *transport.Conn) {
	m.mu.Lock()
	m.conn = conn
	select {
	case <-m.connected:
		// Already signaled: a superseding client reused the slot before
		// the old connection's disconnect was observed.
	default:
		close(m.connected)
	}
	m.mu.Unlock()
	log.Printf("browser client attached from %s", conn.RemoteAddr())
}

// onDisconnect rejects every in-flight request immediately. The host keeps
// running and accepts the next connection.
func (m *Manager) onDisconnect(conn *transport.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.connected = make(chan struct{})
	}
	dropped := m.pending
	m.pending = make(map[string]*pendingRequest)
	m.mu.Unlock()

	err := &bridge.ErrorPayload{Code: bridge.CodeConnectionLost, Message: "browser client disconnected"}
	for _, p := range dropped {
		p.ch <- outcome{err: err}
	}
	if len(dropped) > 0 {
		log.Printf("client disconnected; rejected %d pending request(s)", len(dropped))
	}
	log.Printf("browser client detached")
}

func (m *Manager) onMessage(_ *transport.Conn, msg bridge.Message) {
	switch msg.Type {
	case bridge.TypeAck:
		// Advisory only; the pending entry stays armed.
		log.Printf("ack for %s (%s)", msg.ID, msg.Method)
	case bridge.TypeResponse:
		m.resolve(msg.ID, outcome{payload: msg.Payload})
	case bridge.TypeError:
		var ep bridge.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &ep); err != nil {
			ep = bridge.ErrorPayload{Code: bridge.CodeHandlerError, Message: "undecodable error payload"}
		}
		m.resolve(msg.ID, outcome{err: &ep})
	default:
		log.Printf("ignoring unexpected %s envelope %s", msg.Type, msg.ID)
	}
}

func (m *Manager) resolve(id string, result outcome) {
	m.mu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()
	if ok {
		p.ch <- result
	}
}

// Request sends one request and suspends until the matching response or
// error arrives, the per-operation timeout fires, or the connection drops.
func (m *Manager) Request(ctx context.Context, method bridge.Method, payload any) (json.RawMessage, error) {
	msg, err := bridge.NewRequest(method, payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	conn := m.conn
	if conn == nil {
		m.mu.Unlock()
		return nil, &transportError{err: errors.New("no browser client attached")}
	}
	p := &pendingRequest{ch: make(chan outcome, 1)}
	m.pending[msg.ID] = p
	m.mu.Unlock()

	if err := conn.Send(msg); err != nil {
		m.mu.Lock()
		delete(m.pending, msg.ID)
		m.mu.Unlock()
		return nil, &transportError{err: fmt.Errorf("send %s: %w", method, err)}
	}

	timer := time.NewTimer(TimeoutFor(method))
	defer timer.Stop()
	select {
	case result := <-p.ch:
		return result.payload, result.err
	case <-timer.C:
		m.mu.Lock()
		delete(m.pending, msg.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("%s timed out after %s", method, TimeoutFor(method))
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, msg.ID)
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

// RequestWithRetry is Request behind the retry policy: transport-level
// failures get up to MaxRetryAttempts additional sends with exponential
// backoff, awaiting reconnection in between. Error payload responses are
// returned verbatim on the first attempt; the worker already answered.
func (m *Manager) RequestWithRetry(ctx context.Context, method bridge.Method, payload any) (json.RawMessage, error) {
	var result json.RawMessage
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(MaxRetryAttempts+1),
		retry.Delay(RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransportError),
	).Do(func() error {
		if err := m.EnsureConnected(ctx); err != nil {
			return &transportError{err: err}
		}
		raw, err := m.Request(ctx, method, payload)
		if err != nil {
			return err
		}
		result = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureConnected waits for a client, launching the browser at most once per
// host lifetime. Concurrent callers share the same wait.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	waitCh := m.connected
	m.mu.Unlock()

	if err := m.launchOnce(); err != nil {
		return err
	}

	timer := time.NewTimer(ConnectWait)
	defer timer.Stop()
	select {
	case <-waitCh:
		return nil
	case <-timer.C:
		return fmt.Errorf("no browser client connected within %s; load the webclaw extension or start webclaw-worker --host-url ws://127.0.0.1:%d", ConnectWait, m.Port())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launchOnce fires the OS launcher on the first unattached tool call only.
// A failed launch is remembered: the user gets instructions, not a respawn
// storm.
func (m *Manager) launchOnce() error {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()
	if m.chromeLaunched {
		return nil
	}
	m.chromeLaunched = true
	if err := m.launch(); err != nil {
		return fmt.Errorf("could not launch a browser: %v; start Chrome manually and load the webclaw extension", err)
	}
	return nil
}

// Shutdown rejects pending requests and stops the server.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	dropped := m.pending
	m.pending = make(map[string]*pendingRequest)
	m.mu.Unlock()
	for _, p := range dropped {
		p.ch <- outcome{err: errors.New("host shutting down")}
	}
	return m.server.Shutdown(ctx)
}

// BindDiagnostic renders a user-facing message for bind failures.
func BindDiagnostic(err error) string {
	if errors.Is(err, ErrPortSaturated) {
		return err.Error()
	}
	if strings.Contains(err.Error(), "address already in use") {
		return fmt.Sprintf("%v: another process holds the port; pick a different WEBCLAW_PORT", err)
	}
	return err.Error()
}
