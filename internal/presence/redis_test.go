package presence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m := NewManager(mr.Addr(), "", 0)
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestSetOnlineAndGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetOnline(ctx, 1, "alice", "7"))

	data, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, int64(1), data.UserID)
	assert.Equal(t, "alice", data.Nickname)
	assert.Equal(t, "7", data.BoardID)
	assert.NotZero(t, data.LastHeartbeat)
}

func TestGetOfflineUserReturnsNil(t *testing.T) {
	m, _ := newTestManager(t)

	data, err := m.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSetOfflineRemovesEntry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetOnline(ctx, 1, "alice", "7"))
	require.NoError(t, m.SetOffline(ctx, 1))

	data, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestHeartbeatExtendsTTL(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetOnline(ctx, 1, "alice", "7"))
	mr.FastForward(presenceTTL / 2)
	require.NoError(t, m.Heartbeat(ctx, 1))

	// Without the heartbeat the entry would be gone by now.
	mr.FastForward(presenceTTL / 2)
	data, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestEntryExpiresWithoutHeartbeat(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetOnline(ctx, 1, "alice", "7"))
	mr.FastForward(presenceTTL * 2)

	data, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, data, "stale presence expires on its own")
}

func TestHeartbeatForOfflineUserFails(t *testing.T) {
	m, _ := newTestManager(t)

	assert.Error(t, m.Heartbeat(context.Background(), 404))
}

func TestGetMulti(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetOnline(ctx, 1, "alice", "7"))
	require.NoError(t, m.SetOnline(ctx, 3, "carol", "7"))

	online, err := m.GetMulti(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, online, 2)
	assert.Contains(t, online, int64(1))
	assert.NotContains(t, online, int64(2))
	assert.Equal(t, "carol", online[3].Nickname)
}

func TestNilManagerIsDisabled(t *testing.T) {
	var m *Manager
	ctx := context.Background()

	assert.NoError(t, m.SetOnline(ctx, 1, "alice", "7"))
	assert.NoError(t, m.Heartbeat(ctx, 1))
	assert.NoError(t, m.SetOffline(ctx, 1))

	data, err := m.Get(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, data)

	online, err := m.GetMulti(ctx, []int64{1})
	assert.NoError(t, err)
	assert.Empty(t, online)

	assert.NoError(t, m.Close())
}
