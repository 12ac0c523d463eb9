package boardclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabify-backend/internal/board"
	"collabify-backend/internal/realtime"
)

// fakePublisher collects published events, optionally failing.
type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	fail   bool
}

func (f *fakePublisher) Publish(ev realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("socket down")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) published() []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.Event(nil), f.events...)
}

// fakeSnapshots is an in-memory SnapshotClient.
type fakeSnapshots struct {
	data     []byte
	loadErr  error
	saveErr  error
	saved    [][]byte
	loadCall int
}

func (f *fakeSnapshots) Load(ctx context.Context, boardID string) ([]byte, error) {
	f.loadCall++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.data, nil
}

func (f *fakeSnapshots) Save(ctx context.Context, boardID string, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, data)
	return nil
}

func newReadyStore(t *testing.T, pub Publisher, snaps *fakeSnapshots) *Store {
	t.Helper()
	s := NewStore("1", pub, snaps)
	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, StatusReady, s.Status())
	return s
}

func TestStatusMachine(t *testing.T) {
	snaps := &fakeSnapshots{data: []byte(`{"blocks":[],"strokes":[]}`)}
	s := NewStore("1", &fakePublisher{}, snaps)

	assert.Equal(t, StatusIdle, s.Status())

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, StatusReady, s.Status())

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, StatusReady, s.Status())
}

func TestLoadFailureIsTerminalUntilRetry(t *testing.T) {
	snaps := &fakeSnapshots{loadErr: errors.New("boom")}
	s := NewStore("1", &fakePublisher{}, snaps)

	require.Error(t, s.Load(context.Background()))
	assert.Equal(t, StatusFailed, s.Status())
	assert.Error(t, s.Err())

	// A retry that succeeds recovers the store.
	snaps.loadErr = nil
	snaps.data = []byte(`{"blocks":[{"id":"b1","type":"text","value":"hi","x":0,"y":0,"width":200}]}`)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, StatusReady, s.Status())
	assert.NoError(t, s.Err())
	assert.Len(t, s.Document().Blocks, 1)
}

func TestLoadReplacesDocumentWholesale(t *testing.T) {
	snaps := &fakeSnapshots{data: []byte(`{"blocks":[],"strokes":[]}`)}
	s := newReadyStore(t, &fakePublisher{}, snaps)
	s.AddBlock(board.KindText, 0, 0, "local only")

	snaps.data = []byte(`{"blocks":[{"id":"srv","type":"text","value":"server","x":1,"y":1,"width":200}],"strokes":[]}`)
	require.NoError(t, s.Load(context.Background()))

	doc := s.Document()
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "srv", doc.Blocks[0].ID, "load does not merge, it replaces")
}

func TestOptimisticMutationPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := newReadyStore(t, pub, &fakeSnapshots{})

	b := s.AddBlock(board.KindText, 10, 20, "note")

	// Applied locally before any ack.
	doc := s.Document()
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "note", doc.Blocks[0].Value)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, realtime.EventBlockMutation, evs[0].Type)

	var m board.Mutation
	require.NoError(t, json.Unmarshal(evs[0].Payload, &m))
	assert.Equal(t, board.ActionAdd, m.Action)
	assert.Equal(t, b.ID, m.BlockID, "published add carries the locally generated id")
}

func TestPublishFailureKeepsLocalEdit(t *testing.T) {
	pub := &fakePublisher{fail: true}
	s := newReadyStore(t, pub, &fakeSnapshots{})

	s.AddBlock(board.KindText, 0, 0, "survives")

	assert.Len(t, s.Document().Blocks, 1, "fire-and-forget: the edit is never rolled back")
}

func TestSaveFailureKeepsLocalState(t *testing.T) {
	snaps := &fakeSnapshots{data: []byte(`{}`)}
	s := newReadyStore(t, &fakePublisher{}, snaps)
	s.AddBlock(board.KindText, 0, 0, "keep me")

	snaps.saveErr = errors.New("500")
	err := s.Save(context.Background())

	require.Error(t, err)
	assert.Equal(t, StatusReady, s.Status(), "a failed save does not kill the session")
	assert.Error(t, s.Err())
	assert.Len(t, s.Document().Blocks, 1)

	// Next save succeeds and carries the edit.
	snaps.saveErr = nil
	require.NoError(t, s.Save(context.Background()))
	require.Len(t, snaps.saved, 1)
	assert.Contains(t, string(snaps.saved[0]), "keep me")
}

func TestHandleEventMergesRemoteMutation(t *testing.T) {
	s := newReadyStore(t, &fakePublisher{}, &fakeSnapshots{})

	v := "remote"
	payload, _ := json.Marshal(board.Mutation{
		Action: board.ActionAdd, BlockID: "r1", Kind: board.KindText, Value: &v, X: 5, Y: 5,
	})
	s.HandleEvent(realtime.Event{Type: realtime.EventBlockMutation, SenderID: 2, Payload: payload})

	doc := s.Document()
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "r1", doc.Blocks[0].ID)
	assert.Equal(t, "remote", doc.Blocks[0].Value)
}

func TestHandleEventPresenceAndTyping(t *testing.T) {
	s := newReadyStore(t, &fakePublisher{}, &fakeSnapshots{})

	join, _ := json.Marshal(realtime.PresencePayload{Name: "bob"})
	s.HandleEvent(realtime.Event{Type: realtime.EventPresenceJoin, SenderID: 2, Payload: join})
	s.HandleEvent(realtime.Event{Type: realtime.EventTypingStart, SenderID: 2})

	peers := s.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "bob", peers[0].Name)
	assert.True(t, peers[0].Typing)

	s.HandleEvent(realtime.Event{Type: realtime.EventTypingStop, SenderID: 2})
	assert.False(t, s.Peers()[0].Typing)

	s.HandleEvent(realtime.Event{Type: realtime.EventPresenceLeave, SenderID: 2})
	assert.Empty(t, s.Peers())
}

func TestChatMessageClearsTyping(t *testing.T) {
	s := newReadyStore(t, &fakePublisher{}, &fakeSnapshots{})

	join, _ := json.Marshal(realtime.PresencePayload{Name: "bob"})
	s.HandleEvent(realtime.Event{Type: realtime.EventPresenceJoin, SenderID: 2, Payload: join})
	s.HandleEvent(realtime.Event{Type: realtime.EventTypingStart, SenderID: 2})

	chat, _ := json.Marshal(realtime.ChatPayload{ID: 7, Text: "done typing", SenderName: "bob"})
	s.HandleEvent(realtime.Event{Type: realtime.EventChatMessage, SenderID: 2, Payload: chat})

	assert.False(t, s.Peers()[0].Typing)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "done typing", msgs[0].Text)
}

func TestSeedPeersReplacesRoster(t *testing.T) {
	s := newReadyStore(t, &fakePublisher{}, &fakeSnapshots{})
	join, _ := json.Marshal(realtime.PresencePayload{Name: "stale"})
	s.HandleEvent(realtime.Event{Type: realtime.EventPresenceJoin, SenderID: 99, Payload: join})

	s.SeedPeers([]realtime.Peer{
		{ConnectionID: "c2", ParticipantID: 2, Name: "bob"},
		{ConnectionID: "c3", ParticipantID: 3, Name: "carol"},
	})

	peers := s.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, "bob", peers[0].Name)
	assert.Equal(t, "carol", peers[1].Name)
}

func TestTwoStoresConverge(t *testing.T) {
	// Wire two stores back to back: whatever one publishes, the other merges.
	snaps := &fakeSnapshots{data: []byte(`{}`)}
	a := newReadyStore(t, nil, snaps)
	b := newReadyStore(t, nil, snaps)
	a.SetPublisher(crossPublisher{to: b, senderID: 1})
	b.SetPublisher(crossPublisher{to: a, senderID: 2})

	blk := a.AddBlock(board.KindText, 10, 10, "from a")
	b.Mutate(board.Mutation{Action: board.ActionMove, BlockID: blk.ID, X: 99, Y: 99})
	a.AddStroke(board.Stroke{Points: []board.Point{{X: 1, Y: 1}}, Color: "#000", Width: 2, DrawMode: true})

	assert.Equal(t,
		string(a.Document().Serialize()),
		string(b.Document().Serialize()),
		"replicas fed the same mutation stream converge")
}

// crossPublisher feeds one store's outbound events straight into another.
type crossPublisher struct {
	to       *Store
	senderID int64
}

func (c crossPublisher) Publish(ev realtime.Event) error {
	ev.SenderID = c.senderID
	c.to.HandleEvent(ev)
	return nil
}
