// pkg/vault/vault.go

// Package vault owns the lifecycle of one sealed credential envelope per
// user. The envelope on disk is always sealed; unlocking is a transient,
// per-request derivation and every mutation rewrites the whole envelope
// under a fresh salt and nonce.
package vault

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/effluxlabs/efflux-vault/pkg/crypto"
	"github.com/effluxlabs/efflux-vault/pkg/secretset"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Record is the persisted envelope row. Version increments on every rewrite
// and backs the compare-and-swap that turns a lost update into a typed error
// instead of a silent clobber.
type Record struct {
	UserID     string
	Ciphertext string
	Salt       string
	IV         string
	Version    int64
	UpdatedAt  time.Time
}

// EnvelopeRepo is the persistence collaborator boundary. Get returns
// (nil, nil) when no envelope exists. Update must apply only when the stored
// version equals expectedVersion and return vaulterr.ErrConcurrentModification
// otherwise. Delete is idempotent.
type EnvelopeRepo interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record, expectedVersion int64) error
	Delete(ctx context.Context, userID string) error
	Exists(ctx context.Context, userID string) (bool, error)
}

// Store layers Secret Set semantics over the envelope codec and a
// persistence collaborator. Construct one at startup and inject it; there is
// no package-level instance.
type Store struct {
	repo EnvelopeRepo
	now  func() time.Time
}

// New returns a Store backed by the given repository.
func New(repo EnvelopeRepo) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Exists reports whether the user has a vault. Side-effect free.
func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, vaulterr.ErrNotAuthenticated
	}
	ok, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return false, vaulterr.Persistence(err, "exists")
	}
	return ok, nil
}

// Create seals the initial secrets and persists a brand-new envelope. It
// refuses to overwrite an existing vault: replacing one requires an explicit
// Delete or a password reset.
func (s *Store) Create(ctx context.Context, userID string, initial *secretset.SecretSet, password string) error {
	if userID == "" {
		return vaulterr.ErrNotAuthenticated
	}
	if initial == nil {
		initial = &secretset.SecretSet{}
	}

	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return vaulterr.Persistence(err, "exists")
	}
	if exists {
		return vaulterr.ErrVaultExists
	}

	rec, err := s.sealRecord(userID, initial, password)
	if err != nil {
		return err
	}
	rec.Version = 1

	if err := s.repo.Insert(ctx, rec); err != nil {
		if cerr.Is(err, vaulterr.ErrVaultExists) {
			return vaulterr.ErrVaultExists
		}
		return vaulterr.Persistence(err, "insert envelope")
	}

	otelzap.Ctx(ctx).Info("Vault created",
		zap.String("user_id", userID),
		zap.Int("initial_providers", len(initial.Configured())))
	return nil
}

// Open loads and decrypts the user's envelope. Absence surfaces as
// ErrNoVault; an authentication failure surfaces as ErrWrongPasswordOrCorrupt
// with no hint as to which cause applied.
func (s *Store) Open(ctx context.Context, userID, password string) (*secretset.SecretSet, error) {
	set, _, err := s.open(ctx, userID, password)
	return set, err
}

func (s *Store) open(ctx context.Context, userID, password string) (*secretset.SecretSet, *Record, error) {
	if userID == "" {
		return nil, nil, vaulterr.ErrNotAuthenticated
	}

	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, nil, vaulterr.Persistence(err, "get envelope")
	}
	if rec == nil {
		return nil, nil, vaulterr.ErrNoVault
	}

	plaintext, err := crypto.Open(&crypto.Envelope{
		Ciphertext: rec.Ciphertext,
		Salt:       rec.Salt,
		IV:         rec.IV,
	}, password)
	if err != nil {
		// Deliberately drops the codec error: nothing downstream may learn
		// more than "it did not open".
		return nil, nil, vaulterr.ErrWrongPasswordOrCorrupt
	}

	set, err := secretset.Unmarshal(plaintext)
	if err != nil {
		return nil, nil, vaulterr.ErrWrongPasswordOrCorrupt
	}
	return set, rec, nil
}

// UpdateField opens the vault, replaces one provider's credential and
// reseals the whole set under a fresh salt and nonce. The write is a
// compare-and-swap on the envelope version: if another writer got there
// first the caller sees ErrConcurrentModification and nothing is lost.
func (s *Store) UpdateField(ctx context.Context, userID string, provider secretset.Provider, value any, password string) error {
	return s.mutate(ctx, userID, password, func(set *secretset.SecretSet) error {
		return set.Set(provider, value)
	})
}

// RemoveField deletes one provider's credential and reseals.
func (s *Store) RemoveField(ctx context.Context, userID string, provider secretset.Provider, password string) error {
	return s.mutate(ctx, userID, password, func(set *secretset.SecretSet) error {
		return set.Remove(provider)
	})
}

func (s *Store) mutate(ctx context.Context, userID, password string, fn func(*secretset.SecretSet) error) error {
	set, rec, err := s.open(ctx, userID, password)
	if err != nil {
		return err
	}

	if err := fn(set); err != nil {
		return err
	}

	fresh, err := s.sealRecord(userID, set, password)
	if err != nil {
		return err
	}
	fresh.Version = rec.Version + 1

	if err := s.repo.Update(ctx, fresh, rec.Version); err != nil {
		if cerr.Is(err, vaulterr.ErrConcurrentModification) {
			return vaulterr.ErrConcurrentModification
		}
		return vaulterr.Persistence(err, "update envelope")
	}

	otelzap.Ctx(ctx).Info("Vault updated",
		zap.String("user_id", userID),
		zap.Int64("version", fresh.Version))
	return nil
}

// Delete removes the envelope entirely. Idempotent.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return vaulterr.ErrNotAuthenticated
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return vaulterr.Persistence(err, "delete envelope")
	}
	otelzap.Ctx(ctx).Info("Vault deleted", zap.String("user_id", userID))
	return nil
}

func (s *Store) sealRecord(userID string, set *secretset.SecretSet, password string) (*Record, error) {
	plaintext, err := set.Marshal()
	if err != nil {
		return nil, err
	}

	env, err := crypto.Seal(plaintext, password)
	if err != nil {
		return nil, err
	}

	return &Record{
		UserID:     userID,
		Ciphertext: env.Ciphertext,
		Salt:       env.Salt,
		IV:         env.IV,
		UpdatedAt:  s.now().UTC(),
	}, nil
}
