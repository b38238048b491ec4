// pkg/crypto/envelope.go

// Package crypto implements the password-based envelope codec that protects
// a user's credential blob at rest: PBKDF2-SHA256 key derivation plus
// AES-256-GCM authenticated encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	cerr "github.com/cockroachdb/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the random salt length fed to the KDF.
	SaltSize = 16

	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12

	// KeySize selects AES-256.
	KeySize = 32

	// KDFIterations is the PBKDF2 round count. Deliberately slow: this is
	// the brute-force deterrent for stolen envelopes. Changing it breaks
	// every existing envelope, so it is fixed.
	KDFIterations = 100_000
)

// ErrDecryptionFailed is returned whenever an envelope cannot be opened.
// A wrong password, a flipped ciphertext bit and corrupted storage are
// indistinguishable: the GCM tag check fails identically for all three.
var ErrDecryptionFailed = cerr.New("decryption failed")

// Envelope is the at-rest representation of a sealed plaintext. Each field
// is an independent base64 string. This is the storage contract; changing
// the encoding invalidates every persisted vault.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Salt       string `json:"salt"`
	IV         string `json:"iv"`
}

// Seal encrypts plaintext under a key derived from password. Salt and nonce
// are freshly generated on every call; two seals of identical input never
// produce the same envelope.
func Seal(plaintext []byte, password string) (*Envelope, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key := deriveKey(password, salt)
	defer SecureZero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Open re-derives the key from password and the stored salt and attempts
// authenticated decryption. The GCM tag check doubles as the
// password-correctness check; any failure surfaces as ErrDecryptionFailed
// with no further detail.
func Open(env *Envelope, password string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(salt) < SaltSize || len(nonce) != NonceSize {
		return nil, ErrDecryptionFailed
	}

	key := deriveKey(password, salt)
	defer SecureZero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, KDFIterations, KeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SecureZero overwrites a byte slice in place. Derived keys are zeroed as
// soon as the cipher no longer needs them.
func SecureZero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
