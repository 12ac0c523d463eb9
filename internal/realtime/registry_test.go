package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records every event it is handed, optionally failing.
type fakeTransport struct {
	mu     sync.Mutex
	events []Event
	closed bool
	fail   bool
}

func (f *fakeTransport) Send(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fakeTransport) ofType(eventType string) []Event {
	var out []Event
	for _, ev := range f.received() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestJoinCreatesRoomImplicitly(t *testing.T) {
	r := NewRegistry()

	peers := r.Join("c1", "board-1", 1, "alice", &fakeTransport{})

	assert.Empty(t, peers, "first member sees nobody")
	require.Len(t, r.PeersOf("board-1"), 1)
}

func TestJoinReturnsExistingPeersAndNotifiesThem(t *testing.T) {
	r := NewRegistry()
	t1 := &fakeTransport{}
	r.Join("c1", "board-1", 1, "alice", t1)

	peers := r.Join("c2", "board-1", 2, "bob", &fakeTransport{})

	require.Len(t, peers, 1)
	assert.Equal(t, int64(1), peers[0].ParticipantID)
	assert.Equal(t, "alice", peers[0].Name)

	joins := t1.ofType(EventPresenceJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, int64(2), joins[0].SenderID)
	assert.Equal(t, "board-1", joins[0].BoardID)

	var p PresencePayload
	require.NoError(t, json.Unmarshal(joins[0].Payload, &p))
	assert.Equal(t, "bob", p.Name)
}

func TestJoinDoesNotNotifyJoiner(t *testing.T) {
	r := NewRegistry()
	t2 := &fakeTransport{}
	r.Join("c1", "board-1", 1, "alice", &fakeTransport{})
	r.Join("c2", "board-1", 2, "bob", t2)

	assert.Empty(t, t2.ofType(EventPresenceJoin), "joiner must not receive its own presence-join")
}

func TestAtMostOneRoomPerConnection(t *testing.T) {
	r := NewRegistry()
	watcherA := &fakeTransport{}
	r.Join("watcher-a", "board-a", 9, "watcher", watcherA)

	r.Join("c1", "board-a", 1, "alice", &fakeTransport{})
	r.Join("c1", "board-b", 1, "alice", &fakeTransport{})

	assert.Len(t, r.PeersOf("board-a"), 1, "connection left board-a when joining board-b")
	assert.Len(t, r.PeersOf("board-b"), 1)
}

func TestLeaveNotifiesRemainder(t *testing.T) {
	r := NewRegistry()
	t1 := &fakeTransport{}
	r.Join("c1", "board-1", 1, "alice", t1)
	r.Join("c2", "board-1", 2, "bob", &fakeTransport{})

	r.Leave("c2")

	leaves := t1.ofType(EventPresenceLeave)
	require.Len(t, leaves, 1)
	assert.Equal(t, int64(2), leaves[0].SenderID)
	assert.Len(t, r.PeersOf("board-1"), 1)
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	t1 := &fakeTransport{}
	r.Join("c1", "board-1", 1, "alice", t1)
	r.Join("c2", "board-1", 2, "bob", &fakeTransport{})

	r.Leave("c2")
	r.Leave("c2")
	r.Leave("never-joined")

	assert.Len(t, t1.ofType(EventPresenceLeave), 1, "repeat leaves must not produce extra events")
}

func TestLastLeaveReclaimsRoom(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", "board-1", 1, "alice", &fakeTransport{})
	r.Leave("c1")

	assert.Empty(t, r.PeersOf("board-1"))

	r.mu.RLock()
	_, exists := r.rooms["board-1"]
	r.mu.RUnlock()
	assert.False(t, exists, "empty room must be reclaimed")
}

func TestDeadPeerTransportDoesNotBlockPresence(t *testing.T) {
	r := NewRegistry()
	dead := &fakeTransport{fail: true}
	alive := &fakeTransport{}
	r.Join("c1", "board-1", 1, "alice", dead)
	r.Join("c2", "board-1", 2, "bob", alive)

	r.Join("c3", "board-1", 3, "carol", &fakeTransport{})

	assert.Len(t, alive.ofType(EventPresenceJoin), 1, "alive peer still gets the event")
}
