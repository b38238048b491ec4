// pkg/provider/manager.go

package provider

import (
	"context"
	"sync"

	cerr "github.com/cockroachdb/errors"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
)

// ErrNotConfigured is returned when a chat or validation call names a
// provider the current secret set has no credential for.
var ErrNotConfigured = cerr.New("provider not configured")

// Manager holds the adapters built from a decrypted secret set. It is
// reconfigured whenever the vault is unlocked or its contents change, and
// torn down when the vault locks.
type Manager struct {
	mu        sync.RWMutex
	providers map[secretset.Provider]Provider
}

func NewManager() *Manager {
	return &Manager{providers: make(map[secretset.Provider]Provider)}
}

// Configure rebuilds the adapter set from the given secrets. Providers
// absent from the set are dropped, so locking the vault can simply pass
// an empty set.
func (m *Manager) Configure(set secretset.SecretSet) {
	next := make(map[secretset.Provider]Provider)
	if set.OpenAI != "" {
		next[secretset.ProviderOpenAI] = newOpenAI(set.OpenAI)
	}
	if set.Anthropic != "" {
		next[secretset.ProviderAnthropic] = newAnthropic(set.Anthropic)
	}
	if set.Google != "" {
		next[secretset.ProviderGoogle] = newGoogle(set.Google)
	}
	if set.AWS != nil {
		next[secretset.ProviderAWS] = newBedrock(*set.AWS)
	}
	if set.Azure != nil {
		next[secretset.ProviderAzure] = newAzureOpenAI(*set.Azure)
	}

	m.mu.Lock()
	m.providers = next
	m.mu.Unlock()
}

// Reset drops every adapter, forgetting the credentials they held.
func (m *Manager) Reset() {
	m.Configure(secretset.SecretSet{})
}

// Available reports whether a credential is configured for id.
func (m *Manager) Available(id secretset.Provider) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.providers[id]
	return ok
}

// Get returns the adapter for id.
func (m *Manager) Get(id secretset.Provider) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, cerr.WithDetail(ErrNotConfigured, string(id))
	}
	return p, nil
}

// Models aggregates the models of every configured provider, in the
// canonical provider order.
func (m *Manager) Models() []ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var models []ModelInfo
	for _, id := range secretset.Providers() {
		if p, ok := m.providers[id]; ok {
			models = append(models, p.Models()...)
		}
	}
	return models
}

// ProviderModels returns the models served by one provider, or nil when
// it is not configured.
func (m *Manager) ProviderModels(id secretset.Provider) []ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil
	}
	return p.Models()
}

// Chat starts a streaming completion on the named provider.
func (m *Manager) Chat(ctx context.Context, id secretset.Provider, messages []ChatMessage, opts ChatOptions) (*Stream, error) {
	p, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return p.Chat(ctx, messages, opts)
}

// Validate checks the stored credential for id against the upstream API.
func (m *Manager) Validate(ctx context.Context, id secretset.Provider) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	return p.ValidateCredential(ctx)
}
