package realtime

import (
	"log"
	"sync"
)

// Transport delivers events to one connected participant. The websocket
// adapter implements it in production; tests plug in fakes.
type Transport interface {
	Send(Event) error
	Close() error
}

// Peer is the registry's public view of one room member.
type Peer struct {
	ConnectionID  string `json:"connectionId"`
	ParticipantID int64  `json:"participantId"`
	Name          string `json:"name"`
}

// connection is one live transport session. A connection belongs to exactly
// one participant and at most one room.
type connection struct {
	id            string
	participantID int64
	name          string
	transport     Transport
	boardID       string
}

// Registry is the authoritative map of board room -> active connections.
// Rooms are created implicitly on first join and reclaimed on last leave; a
// room with no connections has no state at all.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	rooms map[string]map[string]*connection
}

// NewRegistry Registry 생성
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connection),
		rooms: make(map[string]map[string]*connection),
	}
}

// Join registers the connection under the board's room and returns the peers
// already there. If the connection was in a different room it leaves that room
// first; joining a room that does not exist yet creates it. The other members
// receive one presence-join event.
func (r *Registry) Join(connID, boardID string, participantID int64, name string, t Transport) []Peer {
	r.mu.Lock()

	if prev, ok := r.conns[connID]; ok && prev.boardID != boardID {
		r.removeLocked(prev)
	}

	conn := &connection{
		id:            connID,
		participantID: participantID,
		name:          name,
		transport:     t,
		boardID:       boardID,
	}
	r.conns[connID] = conn

	room, ok := r.rooms[boardID]
	if !ok {
		room = make(map[string]*connection)
		r.rooms[boardID] = room
	}
	room[connID] = conn

	peers := make([]Peer, 0, len(room)-1)
	targets := make([]*connection, 0, len(room)-1)
	for id, c := range room {
		if id == connID {
			continue
		}
		peers = append(peers, Peer{ConnectionID: c.id, ParticipantID: c.participantID, Name: c.name})
		targets = append(targets, c)
	}
	r.mu.Unlock()

	log.Printf("[Registry] %s (user %d) joined board %s, members: %d", connID, participantID, boardID, len(peers)+1)

	ev := NewEvent(EventPresenceJoin, boardID, participantID, PresencePayload{Name: name})
	deliver(targets, ev)

	return peers
}

// Leave removes the connection from its room. Safe to call any number of
// times and from any close path; remaining members receive one presence-leave
// event. Unknown connections are a no-op.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	boardID := conn.boardID
	r.removeLocked(conn)

	var targets []*connection
	for _, c := range r.rooms[boardID] {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	log.Printf("[Registry] %s (user %d) left board %s, remaining: %d", connID, conn.participantID, boardID, len(targets))

	ev := NewEvent(EventPresenceLeave, boardID, conn.participantID, PresencePayload{Name: conn.name})
	deliver(targets, ev)
}

// PeersOf returns a snapshot of the room's members at the time of the call.
func (r *Registry) PeersOf(boardID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.rooms[boardID]))
	for _, c := range r.rooms[boardID] {
		peers = append(peers, Peer{ConnectionID: c.id, ParticipantID: c.participantID, Name: c.name})
	}
	return peers
}

// removeLocked drops the connection from its room and reclaims the room when
// it empties. Caller holds r.mu.
func (r *Registry) removeLocked(conn *connection) {
	delete(r.conns, conn.id)
	if room, ok := r.rooms[conn.boardID]; ok {
		delete(room, conn.id)
		if len(room) == 0 {
			delete(r.rooms, conn.boardID)
		}
	}
}

// lookup resolves a connection and its room for the relay.
func (r *Registry) lookup(connID string) (participantID int64, boardID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, found := r.conns[connID]
	if !found {
		return 0, "", false
	}
	return conn.participantID, conn.boardID, true
}

// membersExcept snapshots every room member other than the given connection.
func (r *Registry) membersExcept(boardID, connID string) []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*connection, 0, len(r.rooms[boardID]))
	for id, c := range r.rooms[boardID] {
		if id != connID {
			members = append(members, c)
		}
	}
	return members
}

// deliver sends ev to each target independently. A dead transport only loses
// its own copy.
func deliver(targets []*connection, ev Event) {
	for _, c := range targets {
		if err := c.transport.Send(ev); err != nil {
			log.Printf("[Registry] failed to send %s to %s: %v", ev.Type, c.id, err)
		}
	}
}
