package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"webclaw/internal/bridge"
)

// extensionSchemes are the browser-extension origins allowed to upgrade.
var extensionSchemes = []string{
	"chrome-extension://",
	"moz-extension://",
	"safari-web-extension://",
}

// ValidateUpgrade applies the loopback admission policy: an absent Origin
// (Node clients) or an extension-scheme Origin passes; anything else is
// rejected. A Host header, when present, must name loopback on our port.
func ValidateUpgrade(origin, host string, port int) error {
	if origin != "" {
		allowed := false
		for _, scheme := range extensionSchemes {
			if strings.HasPrefix(origin, scheme) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("origin %q is not a browser extension", origin)
		}
	}
	if host != "" {
		ok := false
		for _, candidate := range []string{
			fmt.Sprintf("127.0.0.1:%d", port),
			fmt.Sprintf("localhost:%d", port),
			fmt.Sprintf("[::1]:%d", port),
		} {
			if strings.EqualFold(host, candidate) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("host %q is not loopback on port %d", host, port)
		}
	}
	return nil
}

// Conn is one accepted client connection with serialized writes.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Send writes one envelope as a text frame.
func (c *Conn) Send(msg bridge.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down.
func (c *Conn) Close() error { return c.ws.Close() }

// RemoteAddr reports the peer address for logging.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Server is the host-side WebSocket endpoint. It holds at most one client:
// a newly accepted connection forcibly closes its predecessor so a restarted
// browser session re-binds cleanly.
type Server struct {
	port     int
	listener net.Listener
	httpSrv  *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	current *Conn

	// OnConnect fires after a client is installed; OnMessage for every
	// parsed envelope; OnDisconnect after the read loop ends.
	OnConnect    func(*Conn)
	OnMessage    func(*Conn, bridge.Message)
	OnDisconnect func(*Conn)
}

// NewServer prepares a server for the given loopback port. Bind happens in
// Start so the caller decides how bind failures map to exit codes.
func NewServer(port int) *Server {
	s := &Server{port: port}
	s.upgrader = websocket.Upgrader{
		// Origin policy is enforced in the handler where we can answer
		// with a plain 403.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// Port returns the configured port.
func (s *Server) Port() int { return s.port }

// Start binds the loopback listener and begins serving upgrades.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return err
	}
	s.listener = ln
	if s.port == 0 {
		// Tests bind port 0; learn the kernel-assigned port so the Host
		// header check validates against reality.
		s.port = ln.Addr().(*net.TCPAddr).Port
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("websocket server stopped: %v", err)
		}
	}()
	return nil
}

// Shutdown closes the current client and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conn := s.current
	s.current = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Current returns the attached client, if any.
func (s *Server) Current() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if err := ValidateUpgrade(r.Header.Get("Origin"), r.Host, s.port); err != nil {
		log.Printf("rejected upgrade from %s: %v", r.RemoteAddr, err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}
	conn := &Conn{ws: ws}

	s.mu.Lock()
	prev := s.current
	s.current = conn
	s.mu.Unlock()
	if prev != nil {
		log.Printf("new client %s supersedes %s", conn.RemoteAddr(), prev.RemoteAddr())
		_ = prev.Close()
	}

	if s.OnConnect != nil {
		s.OnConnect(conn)
	}
	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *Conn) {
	defer func() {
		s.mu.Lock()
		if s.current == conn {
			s.current = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
		if s.OnDisconnect != nil {
			s.OnDisconnect(conn)
		}
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg bridge.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("dropping malformed frame from %s: %v", conn.RemoteAddr(), err)
			continue
		}
		if s.OnMessage != nil {
			s.OnMessage(conn, msg)
		}
	}
}

// Dial connects a worker client to a host, presenting an extension-scheme
// origin so the admission policy accepts it.
func Dial(ctx context.Context, hostURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("Origin", "chrome-extension://webclaw")
	ws, resp, err := dialer.DialContext(ctx, hostURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostURL, err)
	}
	return ws, nil
}
