package worker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"webclaw/internal/bridge"
	"webclaw/internal/transport"
)

// Client keeps a worker attached to its host, reconnecting with capped
// backoff when the host restarts or the link drops.
type Client struct {
	hostURL string
	worker  *Worker
}

// NewClient pairs a worker with a host URL (ws://127.0.0.1:<port>).
func NewClient(hostURL string, w *Worker) *Client {
	return &Client{hostURL: hostURL, worker: w}
}

// Run dials the host and serves requests until the context is canceled.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ws, err := transport.Dial(ctx, c.hostURL)
		if err != nil {
			log.Printf("host not reachable: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		log.Printf("attached to host %s", c.hostURL)
		backoff = time.Second
		c.serve(ctx, ws)
		log.Printf("detached from host; reconnecting")
	}
}

func (c *Client) serve(ctx context.Context, ws *websocket.Conn) {
	defer func() { _ = ws.Close() }()

	var writeMu sync.Mutex
	send := func(msg bridge.Message) {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("encode reply %s: %v", msg.ID, err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("write reply %s: %v", msg.ID, err)
		}
	}

	// Close the socket when the context ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg bridge.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("dropping malformed frame: %v", err)
			continue
		}
		for _, reply := range c.worker.Handle(ctx, msg) {
			send(reply)
		}
	}
}
