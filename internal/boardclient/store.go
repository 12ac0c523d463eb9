// Package boardclient holds the client-side state of one open board: the
// local document replica, the roster, the chat log, and the load/save status.
// Local edits apply immediately and go out over the relay fire-and-forget;
// remote events merge by replaying the identical mutation, so every replica
// that sees the same event stream converges on the same document.
package boardclient

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"collabify-backend/internal/board"
	"collabify-backend/internal/realtime"
)

// Status is the lifecycle of the persisted snapshot, not of the connection.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusSaving  Status = "saving"
	StatusFailed  Status = "failed"
)

// Publisher sends locally produced events into the board room.
type Publisher interface {
	Publish(ev realtime.Event) error
}

// SnapshotClient is the persistence boundary for whole-document snapshots.
type SnapshotClient interface {
	Load(ctx context.Context, boardID string) ([]byte, error)
	Save(ctx context.Context, boardID string, data []byte) error
}

// Peer is one other participant currently in the room.
type Peer struct {
	ID     int64
	Name   string
	Typing bool
}

// Store is the synchronization state of one open board. Safe for concurrent
// use; the read pump and the UI thread both touch it.
type Store struct {
	boardID string
	pub     Publisher
	snaps   SnapshotClient

	mu       sync.Mutex
	status   Status
	lastErr  error
	doc      *board.Document
	peers    map[int64]*Peer
	messages []realtime.ChatPayload
}

// NewStore returns an idle store with an empty document.
func NewStore(boardID string, pub Publisher, snaps SnapshotClient) *Store {
	return &Store{
		boardID: boardID,
		pub:     pub,
		snaps:   snaps,
		status:  StatusIdle,
		doc:     board.NewDocument(),
		peers:   make(map[int64]*Peer),
	}
}

// SetPublisher wires the outbound side after construction; the connection
// needs the store for its read pump, so the two are built in sequence.
func (s *Store) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub = p
}

// Status returns the snapshot lifecycle state.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the last load/save error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load fetches the stored snapshot and replaces the local document wholesale.
// On failure the store stays failed until Load is retried; edits made before a
// successful load would be lost by the replace, so callers gate editing on
// StatusReady.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusLoading || s.status == StatusSaving {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusLoading
	s.mu.Unlock()

	raw, err := s.snaps.Load(ctx, s.boardID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = StatusFailed
		s.lastErr = err
		return err
	}
	s.doc = board.Deserialize(raw)
	s.status = StatusReady
	s.lastErr = nil
	return nil
}

// Save persists the current document as a whole snapshot, last write wins.
// A failed save keeps every local edit and surfaces the error.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusReady {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusSaving
	raw := s.doc.Serialize()
	s.mu.Unlock()

	err := s.snaps.Save(ctx, s.boardID, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusReady
	s.lastErr = err
	return err
}

// Document returns a deep copy for rendering.
func (s *Store) Document() *board.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Mutate applies one block edit locally and publishes it. Publish failures
// are logged, never rolled back: the edit stays local and the next snapshot
// save carries it.
func (s *Store) Mutate(m board.Mutation) {
	s.mu.Lock()
	s.doc.Apply(m)
	s.mu.Unlock()

	s.publish(realtime.EventBlockMutation, m)
}

// AddBlock creates a block locally and publishes the add, so every replica
// ends up with the same block id.
func (s *Store) AddBlock(kind string, x, y float64, value string) board.Block {
	s.mu.Lock()
	b := s.doc.AddBlock(kind, x, y, value)
	s.mu.Unlock()

	v := b.Value
	s.publish(realtime.EventBlockMutation, board.Mutation{
		Action:  board.ActionAdd,
		BlockID: b.ID,
		Kind:    b.Kind,
		Value:   &v,
		X:       b.X,
		Y:       b.Y,
		Width:   b.Width,
		Height:  b.Height,
	})
	return b
}

// AddStroke appends one completed ink gesture locally and publishes it.
func (s *Store) AddStroke(st board.Stroke) {
	s.mu.Lock()
	s.doc.AddStroke(st)
	s.mu.Unlock()

	s.publish(realtime.EventStroke, st)
}

// SendChat appends the message optimistically and publishes it; the server
// persists it and forwards the enriched copy to the other members.
func (s *Store) SendChat(text, senderName string) {
	msg := realtime.ChatPayload{Text: text, SenderName: senderName}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(realtime.EventChatMessage, realtime.ChatPayload{Text: text})
}

// SetTyping publishes a typing indicator change.
func (s *Store) SetTyping(name string, typing bool) {
	eventType := realtime.EventTypingStop
	if typing {
		eventType = realtime.EventTypingStart
	}
	s.publish(eventType, realtime.PresencePayload{Name: name})
}

// SeedPeers replaces the roster, used when a connection (re)joins the room.
func (s *Store) SeedPeers(peers []realtime.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = make(map[int64]*Peer, len(peers))
	for _, p := range peers {
		s.peers[p.ParticipantID] = &Peer{ID: p.ParticipantID, Name: p.Name}
	}
}

// HandleEvent merges one inbound room event. Unknown tags are ignored.
func (s *Store) HandleEvent(ev realtime.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case realtime.EventPresenceJoin:
		var p realtime.PresencePayload
		decode(ev, &p)
		s.peers[ev.SenderID] = &Peer{ID: ev.SenderID, Name: p.Name}

	case realtime.EventPresenceLeave:
		delete(s.peers, ev.SenderID)

	case realtime.EventBlockMutation:
		var m board.Mutation
		if decode(ev, &m) {
			s.doc.Apply(m)
		}

	case realtime.EventStroke:
		var st board.Stroke
		if decode(ev, &st) {
			s.doc.AddStroke(st)
		}

	case realtime.EventChatMessage:
		var msg realtime.ChatPayload
		if decode(ev, &msg) {
			s.messages = append(s.messages, msg)
		}
		if p, ok := s.peers[ev.SenderID]; ok {
			p.Typing = false
		}

	case realtime.EventTypingStart, realtime.EventTypingStop:
		if p, ok := s.peers[ev.SenderID]; ok {
			p.Typing = ev.Type == realtime.EventTypingStart
		}
	}
}

// Peers returns the roster sorted by id.
func (s *Store) Peers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Messages returns the chat log, oldest first.
func (s *Store) Messages() []realtime.ChatPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.ChatPayload(nil), s.messages...)
}

func (s *Store) publish(eventType string, payload any) {
	s.mu.Lock()
	pub := s.pub
	s.mu.Unlock()
	if pub == nil {
		return
	}
	ev := realtime.NewEvent(eventType, s.boardID, 0, payload)
	if err := pub.Publish(ev); err != nil {
		log.Printf("[BoardClient] publish %s failed: %v", eventType, err)
	}
}

func decode(ev realtime.Event, v any) bool {
	if len(ev.Payload) == 0 {
		return false
	}
	return json.Unmarshal(ev.Payload, v) == nil
}
