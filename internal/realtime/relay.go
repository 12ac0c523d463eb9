package realtime

import (
	"errors"
	"log"
)

// ErrNotInRoom is returned to a sender that publishes before joining a board.
// Nothing is broadcast in that case.
var ErrNotInRoom = errors.New("connection is not in a room")

// Relay fans one inbound event out to every other connection in the sender's
// room. It is stateless with respect to document content: block mutations and
// strokes pass through untouched, and nothing is buffered for replay. A peer
// that is disconnected at publish time misses the event for good.
type Relay struct {
	registry *Registry
}

// NewRelay Relay 생성
func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Publish stamps the event with the sender's room and participant id, then
// delivers it to each peer transport independently. One peer's dead transport
// never blocks the others and is never surfaced to the sender; only a missing
// join is an error, and that error goes to the sender alone.
func (r *Relay) Publish(connID string, ev Event) error {
	participantID, boardID, ok := r.registry.lookup(connID)
	if !ok {
		return ErrNotInRoom
	}

	ev.BoardID = boardID
	ev.SenderID = participantID

	peers := r.registry.membersExcept(boardID, connID)
	for _, peer := range peers {
		if err := peer.transport.Send(ev); err != nil {
			log.Printf("[Relay] dropped %s for %s on board %s: %v", ev.Type, peer.id, boardID, err)
		}
	}
	return nil
}
