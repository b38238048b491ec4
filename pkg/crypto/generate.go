// pkg/crypto/generate.go

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()_+-="

// GeneratePassword returns a random password drawn from a printable charset.
// Used by the CLI's --generate flow for users who want a machine-chosen
// vault password.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = 32
	}

	values := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, values); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	out := make([]byte, length)
	for i, v := range values {
		out[i] = passwordCharset[int(v)%len(passwordCharset)]
	}
	return string(out), nil
}

// HashPassword returns the base64 SHA-256 of a password. Used only for
// client-side verification hints, never for storage: envelope opening is the
// real password check.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}
