package handler

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"collabify-backend/internal/presence"
	"collabify-backend/internal/realtime"
)

// BoardWSHandler 보드 WebSocket 핸들러
// One connection = one participant on one board. The upgrade route has
// already verified the JWT and board access before this handler runs.
type BoardWSHandler struct {
	db           *gorm.DB
	registry     *realtime.Registry
	relay        *realtime.Relay
	presence     *presence.Manager
	writeTimeout time.Duration
}

// NewBoardWSHandler BoardWSHandler 생성
func NewBoardWSHandler(db *gorm.DB, registry *realtime.Registry, relay *realtime.Relay, pm *presence.Manager, writeTimeout time.Duration) *BoardWSHandler {
	return &BoardWSHandler{
		db:           db,
		registry:     registry,
		relay:        relay,
		presence:     pm,
		writeTimeout: writeTimeout,
	}
}

// wsTransport adapts one fiber websocket connection to realtime.Transport.
// writeMu serializes writers: the registry, the relay and the error path all
// write to the same conn.
type wsTransport struct {
	conn    *websocket.Conn
	timeout time.Duration
	writeMu sync.Mutex
}

func (t *wsTransport) Send(ev realtime.Event) error {
	raw, _ := json.Marshal(ev)
	return t.write(raw)
}

func (t *wsTransport) write(raw []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.timeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, raw)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// rosterFrame is the first frame a new member receives: who is already here.
type rosterFrame struct {
	Type    string          `json:"type"`
	BoardID string          `json:"boardId"`
	Payload []realtime.Peer `json:"payload"`
}

// errorFrame is sent to the offending sender only.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HandleWebSocket WebSocket 연결 처리
func (h *BoardWSHandler) HandleWebSocket(c *websocket.Conn) {
	boardID, ok1 := c.Locals("boardID").(string)
	userID, ok2 := c.Locals("userID").(int64)
	nickname, _ := c.Locals("nickname").(string)

	if !ok1 || !ok2 {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"invalid session"}`))
		c.Close()
		return
	}

	numericBoardID, err := strconv.ParseInt(boardID, 10, 64)
	if err != nil {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"invalid board id"}`))
		c.Close()
		return
	}

	connID := uuid.New().String()
	transport := &wsTransport{conn: c, timeout: h.writeTimeout}

	peers := h.registry.Join(connID, boardID, userID, nickname, transport)

	// Seed the new member's presence view.
	if raw, err := json.Marshal(rosterFrame{Type: "peers", BoardID: boardID, Payload: peers}); err == nil {
		transport.write(raw)
	}

	if err := h.presence.SetOnline(context.Background(), userID, nickname, boardID); err != nil {
		log.Printf("[BoardWS] presence set online failed for user %d: %v", userID, err)
	}
	stopHeartbeat := h.startHeartbeat(userID)

	log.Printf("[BoardWS] connected: board=%s user=%d conn=%s", boardID, userID, connID)

	// Leave must run on every close path: explicit leave, read error, or
	// server shutdown closing the conn.
	defer func() {
		stopHeartbeat()
		h.registry.Leave(connID)
		if err := h.presence.SetOffline(context.Background(), userID); err != nil {
			log.Printf("[BoardWS] presence set offline failed for user %d: %v", userID, err)
		}
		c.Close()
		log.Printf("[BoardWS] disconnected: board=%s user=%d conn=%s", boardID, userID, connID)
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}

		var ev realtime.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case realtime.EventPresenceJoin, realtime.EventPresenceLeave:
			// Server-generated only; a client cannot forge presence.
			continue

		case realtime.EventChatMessage:
			h.handleChat(numericBoardID, userID, nickname, &ev)
			h.publish(connID, transport, ev)

		default:
			if !realtime.KnownEventType(ev.Type) {
				continue
			}
			h.publish(connID, transport, ev)
		}
	}
}

// publish relays one event; failures concern the sender alone.
func (h *BoardWSHandler) publish(connID string, transport *wsTransport, ev realtime.Event) {
	if err := h.relay.Publish(connID, ev); err != nil {
		frame, _ := json.Marshal(errorFrame{Type: "error", Message: err.Error()})
		transport.write(frame)
	}
}

// handleChat persists the chat message and enriches the event payload with
// the stored id and timestamp before it fans out. Messages the client already
// created over HTTP arrive with an id and pass through untouched.
func (h *BoardWSHandler) handleChat(boardID, userID int64, nickname string, ev *realtime.Event) {
	var payload realtime.ChatPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return
	}
	if payload.ID != 0 {
		return
	}

	msg, err := AppendMessage(h.db, boardID, userID, nickname, payload.Text)
	if err != nil {
		log.Printf("[BoardWS] failed to persist chat for board %d: %v", boardID, err)
		return
	}

	enriched, _ := json.Marshal(realtime.ChatPayload{
		ID:         msg.ID,
		Text:       msg.Content,
		SenderName: msg.SenderName,
		CreatedAt:  msg.CreatedAt.Format(time.RFC3339),
	})
	ev.Payload = enriched
}

// startHeartbeat keeps the presence entry alive until the returned stop
// function runs.
func (h *BoardWSHandler) startHeartbeat(userID int64) func() {
	if h.presence == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(presence.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := h.presence.Heartbeat(context.Background(), userID); err != nil {
					log.Printf("[BoardWS] heartbeat failed for user %d: %v", userID, err)
				}
			}
		}
	}()
	return func() { close(done) }
}
