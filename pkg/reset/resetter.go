// pkg/reset/resetter.go

package reset

import (
	"context"
	"fmt"
	"net/url"

	"github.com/effluxlabs/efflux-vault/pkg/secretset"
	"github.com/effluxlabs/efflux-vault/pkg/vault"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Delivery hands a reset URL to the out-of-band channel (email). Delivery
// failures belong to the collaborator's error domain.
type Delivery interface {
	SendVaultReset(ctx context.Context, recipient, resetURL string) error
}

// Resetter composes the token ledger, the vault store and the delivery
// collaborator into the full reset protocol.
type Resetter struct {
	vaults  *vault.Store
	ledger  *Ledger
	mail    Delivery
	baseURL string
}

// NewResetter wires the reset flow. baseURL is the public application URL
// the reset link points back into.
func NewResetter(vaults *vault.Store, ledger *Ledger, mail Delivery, baseURL string) *Resetter {
	return &Resetter{vaults: vaults, ledger: ledger, mail: mail, baseURL: baseURL}
}

// Request issues a token for the user and emails them the reset link. A user
// with no vault has nothing to reset.
func (r *Resetter) Request(ctx context.Context, userID, email string) error {
	if userID == "" || email == "" {
		return vaulterr.ErrNotAuthenticated
	}

	exists, err := r.vaults.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return vaulterr.ErrNoVault
	}

	tok, err := r.ledger.Issue(ctx, userID)
	if err != nil {
		return err
	}

	resetURL := r.ResetURL(tok.Value)
	if err := r.mail.SendVaultReset(ctx, email, resetURL); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	otelzap.Ctx(ctx).Info("Vault reset requested", zap.String("user_id", userID))
	return nil
}

// Complete replaces the user's vault under a new password after validating
// the token. The old envelope is discarded and the fresh vault starts
// empty: this is a destructive recovery path, not a password change, and
// the user re-enters every credential afterward. The token is burned only
// after the new vault is durably written.
func (r *Resetter) Complete(ctx context.Context, userID, token, newPassword string) error {
	ok, err := r.ledger.Validate(ctx, userID, token)
	if err != nil {
		return err
	}
	if !ok {
		return vaulterr.ErrInvalidOrExpiredToken
	}

	if err := r.vaults.Delete(ctx, userID); err != nil {
		return err
	}
	if err := r.vaults.Create(ctx, userID, &secretset.SecretSet{}, newPassword); err != nil {
		return err
	}

	if err := r.ledger.Consume(ctx, userID, token); err != nil {
		return err
	}

	otelzap.Ctx(ctx).Info("Vault reset completed", zap.String("user_id", userID))
	return nil
}

// ResetURL builds the link delivered to the user.
func (r *Resetter) ResetURL(token string) string {
	return fmt.Sprintf("%s/vault-reset?token=%s", r.baseURL, url.QueryEscape(token))
}
