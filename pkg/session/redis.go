// pkg/session/redis.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long mirrored state may outlive its last
// touch. A reload within the window restores; after it the user unlocks
// again.
const DefaultSessionTTL = 8 * time.Hour

// RedisMirror stores session state in Redis under a per-session key with a
// TTL, the server-side analog of browser session storage.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror wraps an existing Redis client. ttl <= 0 selects the default.
func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisMirror{client: client, ttl: ttl}
}

func (m *RedisMirror) key(sessionID string) string {
	return "efflux:session:" + sessionID
}

func (m *RedisMirror) Save(ctx context.Context, sessionID string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	return m.client.Set(ctx, m.key(sessionID), data, m.ttl).Err()
}

func (m *RedisMirror) Load(ctx context.Context, sessionID string) (*State, error) {
	data, err := m.client.Get(ctx, m.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	return &st, nil
}

func (m *RedisMirror) Clear(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, m.key(sessionID)).Err()
}
