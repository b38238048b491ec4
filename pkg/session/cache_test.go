// pkg/session/cache_test.go

package session

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memMirror collects the serialized state so tests can inspect exactly what
// would hit the wire.
type memMirror struct {
	stored map[string][]byte
}

func newMemMirror() *memMirror {
	return &memMirror{stored: make(map[string][]byte)}
}

func (m *memMirror) Save(_ context.Context, sessionID string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.stored[sessionID] = data
	return nil
}

func (m *memMirror) Load(_ context.Context, sessionID string) (*State, error) {
	data, ok := m.stored[sessionID]
	if !ok {
		return nil, nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memMirror) Clear(_ context.Context, sessionID string) error {
	delete(m.stored, sessionID)
	return nil
}

func TestUnlockLock(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(nil, "")
	secrets := &secretset.SecretSet{OpenAI: "sk-abc"}

	assert.False(t, cache.IsUnlocked())

	cache.Unlock(ctx, "correct-horse", secrets)
	assert.True(t, cache.IsUnlocked())

	pw, ok := cache.Password()
	require.True(t, ok)
	assert.Equal(t, "correct-horse", pw)

	got, ok := cache.Secrets()
	require.True(t, ok)
	assert.Equal(t, "sk-abc", got.OpenAI)

	cache.Lock(ctx)
	assert.False(t, cache.IsUnlocked())
	_, ok = cache.Password()
	assert.False(t, ok)
	_, ok = cache.Secrets()
	assert.False(t, ok)
}

func TestUpdateSecretsKeepsLockState(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(nil, "")

	cache.Unlock(ctx, "pw", &secretset.SecretSet{OpenAI: "sk-1"})
	cache.UpdateSecrets(ctx, &secretset.SecretSet{OpenAI: "sk-1", Anthropic: "sk-ant"})

	assert.True(t, cache.IsUnlocked())
	pw, _ := cache.Password()
	assert.Equal(t, "pw", pw)

	got, ok := cache.Secrets()
	require.True(t, ok)
	assert.Equal(t, "sk-ant", got.Anthropic)
}

func TestMirrorNeverSeesPassword(t *testing.T) {
	ctx := context.Background()
	mirror := newMemMirror()
	cache := NewCache(mirror, "sess-1")

	password := "hunter2-very-secret"
	cache.Unlock(ctx, password, &secretset.SecretSet{OpenAI: "sk-abc"})

	data, ok := mirror.stored["sess-1"]
	require.True(t, ok)
	assert.False(t, strings.Contains(string(data), password),
		"mirrored state must not contain the working password")
	assert.NotContains(t, string(data), "password")
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	mirror := newMemMirror()

	first := NewCache(mirror, "sess-1")
	first.Unlock(ctx, "pw", &secretset.SecretSet{Google: "g-key"})

	// A "page reload": fresh cache, same session.
	second := NewCache(mirror, "sess-1")
	require.NoError(t, second.Restore(ctx))

	assert.True(t, second.IsUnlocked())
	got, ok := second.Secrets()
	require.True(t, ok)
	assert.Equal(t, "g-key", got.Google)

	// The password did not survive the reload; resealing needs re-entry.
	_, ok = second.Password()
	assert.False(t, ok)
}

func TestRestoreEmptyMirror(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemMirror(), "sess-none")
	require.NoError(t, cache.Restore(ctx))
	assert.False(t, cache.IsUnlocked())

	// No mirror configured at all is fine too.
	plain := NewCache(nil, "")
	require.NoError(t, plain.Restore(ctx))
}

func TestLockClearsMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newMemMirror()
	cache := NewCache(mirror, "sess-1")

	cache.Unlock(ctx, "pw", &secretset.SecretSet{OpenAI: "sk"})
	require.Contains(t, mirror.stored, "sess-1")

	cache.Lock(ctx)
	assert.NotContains(t, mirror.stored, "sess-1")
}
