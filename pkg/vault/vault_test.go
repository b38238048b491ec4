// pkg/vault/vault_test.go

package vault_test

import (
	"context"
	"testing"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
	"github.com/effluxlabs/efflux-vault/pkg/vault"
	"github.com/effluxlabs/efflux-vault/pkg/vaultdb"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() (*vault.Store, *vaultdb.Memory) {
	repo := vaultdb.NewMemory()
	return vault.New(repo), repo
}

func TestCreateAndOpen(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	userID := uuid.NewString()

	initial := &secretset.SecretSet{OpenAI: "sk-abc"}
	require.NoError(t, store.Create(ctx, userID, initial, "correct-horse"))

	exists, err := store.Exists(ctx, userID)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Open(ctx, userID, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", got.OpenAI)

	_, err = store.Open(ctx, userID, "wrong")
	assert.ErrorIs(t, err, vaulterr.ErrWrongPasswordOrCorrupt)
}

func TestCreateRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, nil, "pw-one"))
	err := store.Create(ctx, userID, nil, "pw-two")
	assert.ErrorIs(t, err, vaulterr.ErrVaultExists)

	// The original vault is untouched.
	_, err = store.Open(ctx, userID, "pw-one")
	assert.NoError(t, err)
}

func TestOpenNoVault(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()

	_, err := store.Open(ctx, uuid.NewString(), "anything")
	assert.ErrorIs(t, err, vaulterr.ErrNoVault)
}

func TestNotAuthenticated(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()

	_, err := store.Open(ctx, "", "pw")
	assert.ErrorIs(t, err, vaulterr.ErrNotAuthenticated)

	err = store.Create(ctx, "", nil, "pw")
	assert.ErrorIs(t, err, vaulterr.ErrNotAuthenticated)

	_, err = store.Exists(ctx, "")
	assert.ErrorIs(t, err, vaulterr.ErrNotAuthenticated)

	err = store.Delete(ctx, "")
	assert.ErrorIs(t, err, vaulterr.ErrNotAuthenticated)
}

func TestUpdateField(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, &secretset.SecretSet{OpenAI: "sk-abc"}, "correct-horse"))
	require.NoError(t, store.UpdateField(ctx, userID, secretset.ProviderAnthropic, "sk-ant-1", "correct-horse"))

	got, err := store.Open(ctx, userID, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", got.OpenAI)
	assert.Equal(t, "sk-ant-1", got.Anthropic)

	// Structured credential update.
	require.NoError(t, store.UpdateField(ctx, userID, secretset.ProviderAWS,
		secretset.AWSCredential{AccessKeyID: "id", SecretAccessKey: "sec", Region: "us-east-1"},
		"correct-horse"))

	got, err = store.Open(ctx, userID, "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, got.AWS)
	assert.Equal(t, "us-east-1", got.AWS.Region)
}

func TestUpdateFieldWrongPassword(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, &secretset.SecretSet{OpenAI: "sk-abc"}, "right"))

	err := store.UpdateField(ctx, userID, secretset.ProviderOpenAI, "sk-new", "wrong")
	assert.ErrorIs(t, err, vaulterr.ErrWrongPasswordOrCorrupt)

	// Nothing changed.
	got, err := store.Open(ctx, userID, "right")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", got.OpenAI)
}

func TestUpdateResealsEnvelope(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, nil, "pw"))
	before, err := repo.Get(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, store.UpdateField(ctx, userID, secretset.ProviderOpenAI, "sk-abc", "pw"))
	after, err := repo.Get(ctx, userID)
	require.NoError(t, err)

	assert.NotEqual(t, before.Salt, after.Salt, "reseal must use a fresh salt")
	assert.NotEqual(t, before.IV, after.IV, "reseal must use a fresh nonce")
	assert.NotEqual(t, before.Ciphertext, after.Ciphertext)
	assert.Equal(t, before.Version+1, after.Version)
}

func TestConcurrentModification(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, nil, "pw"))

	// Simulate a second tab winning the race: its write lands first and
	// bumps the stored version.
	rec, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	winner := *rec
	winner.Version = rec.Version + 1
	require.NoError(t, repo.Update(ctx, &winner, rec.Version))

	// The loser still holds the old version; its compare-and-swap must fail
	// instead of silently clobbering the winner's edit.
	loser := *rec
	loser.Version = rec.Version + 1
	err = repo.Update(ctx, &loser, rec.Version)
	assert.ErrorIs(t, err, vaulterr.ErrConcurrentModification)
}

func TestRemoveField(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, &secretset.SecretSet{OpenAI: "sk", Google: "g"}, "pw"))
	require.NoError(t, store.RemoveField(ctx, userID, secretset.ProviderOpenAI, "pw"))

	got, err := store.Open(ctx, userID, "pw")
	require.NoError(t, err)
	assert.Empty(t, got.OpenAI)
	assert.Equal(t, "g", got.Google)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	userID := uuid.NewString()

	require.NoError(t, store.Create(ctx, userID, nil, "pw"))
	require.NoError(t, store.Delete(ctx, userID))

	exists, err := store.Exists(ctx, userID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Open(ctx, userID, "pw")
	assert.ErrorIs(t, err, vaulterr.ErrNoVault)

	// Deleting a nonexistent vault is not an error.
	require.NoError(t, store.Delete(ctx, userID))
}
