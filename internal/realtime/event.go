package realtime

import (
	"encoding/json"
)

// Event types carried over a board room. Everything except chat messages is
// ephemeral: delivered to whoever is connected right now, never replayed.
const (
	EventPresenceJoin  = "presence-join"
	EventPresenceLeave = "presence-leave"
	EventStroke        = "stroke"
	EventBlockMutation = "block-mutation"
	EventChatMessage   = "chat-message"
	EventTypingStart   = "typing-start"
	EventTypingStop    = "typing-stop"
)

// Event is the wire envelope exchanged on a board connection. Payload is
// tag-specific and opaque to the relay.
type Event struct {
	Type     string          `json:"type"`
	BoardID  string          `json:"boardId"`
	SenderID int64           `json:"senderId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an envelope with a marshaled payload.
func NewEvent(eventType, boardID string, senderID int64, payload any) Event {
	raw, _ := json.Marshal(payload)
	return Event{
		Type:     eventType,
		BoardID:  boardID,
		SenderID: senderID,
		Payload:  raw,
	}
}

// KnownEventType reports whether t is one of the event tags above.
func KnownEventType(t string) bool {
	switch t {
	case EventPresenceJoin, EventPresenceLeave, EventStroke, EventBlockMutation,
		EventChatMessage, EventTypingStart, EventTypingStop:
		return true
	}
	return false
}

// PresencePayload rides presence-join/presence-leave and typing events.
type PresencePayload struct {
	Name string `json:"name"`
}

// ChatPayload rides chat-message events. Inbound events carry only Text; the
// server fills in the rest after persisting the message.
type ChatPayload struct {
	ID         int64  `json:"id,omitempty"`
	Text       string `json:"text"`
	SenderName string `json:"senderName,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}
