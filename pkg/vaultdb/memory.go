// pkg/vaultdb/memory.go

package vaultdb

import (
	"context"
	"sync"

	"github.com/effluxlabs/efflux-vault/pkg/reset"
	"github.com/effluxlabs/efflux-vault/pkg/vault"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
)

// Memory is an in-process implementation of both repositories, used by
// tests and by the CLI's --dev mode. Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	envelopes map[string]vault.Record
	tokens    map[string]reset.Token
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		envelopes: make(map[string]vault.Record),
		tokens:    make(map[string]reset.Token),
	}
}

// --- vault.EnvelopeRepo ---

func (m *Memory) Get(_ context.Context, userID string) (*vault.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.envelopes[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) Insert(_ context.Context, rec *vault.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.envelopes[rec.UserID]; ok {
		return vaulterr.ErrVaultExists
	}
	m.envelopes[rec.UserID] = *rec
	return nil
}

func (m *Memory) Update(_ context.Context, rec *vault.Record, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.envelopes[rec.UserID]
	if !ok || current.Version != expectedVersion {
		return vaulterr.ErrConcurrentModification
	}
	m.envelopes[rec.UserID] = *rec
	return nil
}

func (m *Memory) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.envelopes, userID)
	return nil
}

func (m *Memory) Exists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.envelopes[userID]
	return ok, nil
}

// --- reset.TokenRepo ---

func (m *Memory) Upsert(_ context.Context, tok *reset.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.UserID] = *tok
	return nil
}

func (m *Memory) Find(_ context.Context, userID, value string) (*reset.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[userID]
	if !ok || tok.Value != value {
		return nil, nil
	}
	return &tok, nil
}

func (m *Memory) MarkConsumed(_ context.Context, userID, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[userID]
	if !ok || tok.Value != value {
		return nil
	}
	tok.Consumed = true
	m.tokens[userID] = tok
	return nil
}
