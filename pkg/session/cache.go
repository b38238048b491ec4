// pkg/session/cache.go

// Package session holds the unlocked vault state for the duration of a
// browsing session. The working password lives only in process memory; the
// optional mirror receives the unlocked flag and the secret set, never the
// password, so nothing recoverable as a password ever reaches durable
// storage.
package session

import (
	"context"
	"sync"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// State is the mirrorable part of a session. It deliberately has no
// password field.
type State struct {
	Unlocked bool                 `json:"unlocked"`
	Secrets  *secretset.SecretSet `json:"secrets,omitempty"`
}

// Mirror is an optional session-scoped store that lets the unlocked state
// survive a page reload. Load returns (nil, nil) when nothing is stored.
type Mirror interface {
	Save(ctx context.Context, sessionID string, st *State) error
	Load(ctx context.Context, sessionID string) (*State, error)
	Clear(ctx context.Context, sessionID string) error
}

// Cache is the per-session unlocked state. Safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	unlocked  bool
	password  string
	secrets   *secretset.SecretSet
	mirror    Mirror
	sessionID string
}

// NewCache returns a locked cache. mirror may be nil.
func NewCache(mirror Mirror, sessionID string) *Cache {
	return &Cache{mirror: mirror, sessionID: sessionID}
}

// Unlock records the working password and decrypted secrets in memory and
// mirrors the password-free state.
func (c *Cache) Unlock(ctx context.Context, password string, secrets *secretset.SecretSet) {
	c.mu.Lock()
	c.unlocked = true
	c.password = password
	c.secrets = secrets
	c.mu.Unlock()

	c.saveMirror(ctx)
}

// Lock clears everything, in memory and in the mirror.
func (c *Cache) Lock(ctx context.Context) {
	c.mu.Lock()
	c.unlocked = false
	c.password = ""
	c.secrets = nil
	c.mu.Unlock()

	if c.mirror != nil {
		if err := c.mirror.Clear(ctx, c.sessionID); err != nil {
			otelzap.Ctx(ctx).Warn("Failed to clear session mirror")
		}
	}
}

// UpdateSecrets replaces the cached secret set without touching lock state.
// Used after an in-session credential edit.
func (c *Cache) UpdateSecrets(ctx context.Context, secrets *secretset.SecretSet) {
	c.mu.Lock()
	c.secrets = secrets
	c.mu.Unlock()

	c.saveMirror(ctx)
}

// Restore loads mirrored state after a reload. The password cannot be
// restored, only re-entered: any operation that reseals still prompts.
func (c *Cache) Restore(ctx context.Context) error {
	if c.mirror == nil {
		return nil
	}

	st, err := c.mirror.Load(ctx, c.sessionID)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	c.mu.Lock()
	c.unlocked = st.Unlocked
	c.secrets = st.Secrets
	c.mu.Unlock()
	return nil
}

// IsUnlocked reports whether the session is unlocked.
func (c *Cache) IsUnlocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unlocked
}

// Password returns the working password if one is held in memory.
func (c *Cache) Password() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.password, c.password != ""
}

// Secrets returns the cached secret set if the session is unlocked.
func (c *Cache) Secrets() (*secretset.SecretSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.unlocked || c.secrets == nil {
		return nil, false
	}
	return c.secrets, true
}

func (c *Cache) saveMirror(ctx context.Context) {
	if c.mirror == nil {
		return
	}

	c.mu.RLock()
	st := &State{Unlocked: c.unlocked, Secrets: c.secrets}
	c.mu.RUnlock()

	if err := c.mirror.Save(ctx, c.sessionID, st); err != nil {
		otelzap.Ctx(ctx).Warn("Failed to mirror session state")
	}
}
