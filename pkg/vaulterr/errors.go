// pkg/vaulterr/errors.go
//
// Typed error taxonomy for the vault core. Callers branch on these with
// errors.Is; none of them ever carry a password, derived key or decrypted
// secret in their message.

package vaulterr

import (
	cerr "github.com/cockroachdb/errors"
)

var (
	// ErrNotAuthenticated means no valid user identity was supplied.
	ErrNotAuthenticated = cerr.New("not authenticated")

	// ErrNoVault means the user has no envelope; route to vault creation.
	ErrNoVault = cerr.New("no vault exists for this user")

	// ErrVaultExists means Create was called for a user that already has a
	// vault. Replacing it requires an explicit Delete or a password reset.
	ErrVaultExists = cerr.New("vault already exists for this user")

	// ErrWrongPasswordOrCorrupt means AEAD authentication failed. A typo'd
	// password and corrupted storage are indistinguishable by construction.
	ErrWrongPasswordOrCorrupt = cerr.New("incorrect password or corrupted vault")

	// ErrInvalidOrExpiredToken means a reset token failed validation. Not
	// found, already consumed and expired all collapse into this one error.
	ErrInvalidOrExpiredToken = cerr.New("invalid or expired reset token")

	// ErrConcurrentModification means the envelope changed between read and
	// write; the caller should re-open and retry its edit.
	ErrConcurrentModification = cerr.New("vault was modified concurrently")
)

// Persistence wraps a storage collaborator failure. The core never retries
// these internally; retry policy belongs to the caller.
func Persistence(err error, op string) error {
	if err == nil {
		return nil
	}
	return cerr.Wrapf(err, "persistence: %s", op)
}
