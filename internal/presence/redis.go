package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL: a connection that stops heartbeating drops off within a minute.
const (
	presenceTTL       = 60 * time.Second
	HeartbeatInterval = 30 * time.Second
)

// Data Redis에 저장될 접속 상태 데이터
type Data struct {
	UserID        int64  `json:"user_id"`
	Nickname      string `json:"nickname"`
	BoardID       string `json:"board_id,omitempty"` // board currently open, if any
	LastHeartbeat int64  `json:"last_heartbeat"`
}

// Manager tracks which users are online. It is a cache, not the source of
// truth for room membership; the realtime registry owns that. A nil Manager
// is valid and disables every operation.
type Manager struct {
	client *redis.Client
}

// NewManager 생성자
func NewManager(addr, password string, db int) *Manager {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Manager{client: rdb}
}

func (m *Manager) userKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// SetOnline marks the user online on the given board.
func (m *Manager) SetOnline(ctx context.Context, userID int64, nickname, boardID string) error {
	if m == nil {
		return nil
	}
	data := Data{
		UserID:        userID,
		Nickname:      nickname,
		BoardID:       boardID,
		LastHeartbeat: time.Now().Unix(),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.userKey(userID), raw, presenceTTL).Err()
}

// Heartbeat 생존 신고 (TTL 연장)
func (m *Manager) Heartbeat(ctx context.Context, userID int64) error {
	if m == nil {
		return nil
	}
	ok, err := m.client.Expire(ctx, m.userKey(userID), presenceTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %d not found (offline)", userID)
	}
	return nil
}

// SetOffline 상태 삭제 (Disconnect)
func (m *Manager) SetOffline(ctx context.Context, userID int64) error {
	if m == nil {
		return nil
	}
	return m.client.Del(ctx, m.userKey(userID)).Err()
}

// Get returns the user's presence, or nil when offline.
func (m *Manager) Get(ctx context.Context, userID int64) (*Data, error) {
	if m == nil {
		return nil, nil
	}
	val, err := m.client.Get(ctx, m.userKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil // offline
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMulti 여러 유저 상태 조회 (협업자 목록 조회용)
func (m *Manager) GetMulti(ctx context.Context, userIDs []int64) (map[int64]*Data, error) {
	if m == nil || len(userIDs) == 0 {
		return map[int64]*Data{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = m.userKey(id)
	}

	results, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	online := make(map[int64]*Data)
	for i, result := range results {
		strVal, ok := result.(string)
		if !ok {
			continue // offline
		}
		var data Data
		if err := json.Unmarshal([]byte(strVal), &data); err == nil {
			online[userIDs[i]] = &data
		}
	}
	return online, nil
}

// Close 클라이언트 정리
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}
