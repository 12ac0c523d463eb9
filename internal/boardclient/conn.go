package boardclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collabify-backend/internal/realtime"
)

// ErrNotConnected is returned by Publish while the socket is down; the edit
// stays local and the next snapshot save carries it.
var ErrNotConnected = errors.New("boardclient: not connected")

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Conn maintains the websocket to one board room and pumps inbound events
// into the store. On reconnect it simply rejoins; missed events are not
// replayed, the next Load resynchronizes the document.
type Conn struct {
	endpoint string
	store    *Store

	mu sync.Mutex
	ws *websocket.Conn

	done chan struct{}
	once sync.Once
}

// NewConn prepares a connection to baseURL (e.g. "ws://localhost:8000") for
// the given board. The access token rides the query string because browser
// websocket clients cannot set headers.
func NewConn(baseURL, boardID, token string, store *Store) *Conn {
	endpoint := fmt.Sprintf("%s/ws/board/%s?token=%s", baseURL, boardID, url.QueryEscape(token))
	return &Conn{
		endpoint: endpoint,
		store:    store,
		done:     make(chan struct{}),
	}
}

// Run dials and pumps events until ctx is cancelled or Close is called,
// reconnecting with exponential backoff in between.
func (c *Conn) Run(ctx context.Context) error {
	backoff := reconnectMin
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		ws, _, err := dialer.DialContext(ctx, c.endpoint, nil)
		if err != nil {
			log.Printf("[BoardClient] dial failed: %v (retrying in %s)", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}
		backoff = reconnectMin

		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()

		c.readPump(ws)

		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
	}
}

// readPump decodes frames until the socket errors out.
func (c *Conn) readPump(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[BoardClient] read failed: %v", err)
			}
			return
		}

		var frame struct {
			Type    string          `json:"type"`
			Message string          `json:"message"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "peers":
			// First frame after a (re)join: the current roster.
			var peers []realtime.Peer
			if json.Unmarshal(frame.Payload, &peers) == nil {
				c.store.SeedPeers(peers)
			}

		case "error":
			log.Printf("[BoardClient] server error: %s", frame.Message)

		default:
			var ev realtime.Event
			if json.Unmarshal(raw, &ev) == nil && realtime.KnownEventType(ev.Type) {
				c.store.HandleEvent(ev)
			}
		}
	}
}

// Publish sends one event. Safe for concurrent callers; gorilla conns allow
// only one writer at a time.
func (c *Conn) Publish(ev realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(ev)
}

// Close stops Run and closes the socket.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
