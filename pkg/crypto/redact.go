// pkg/crypto/redact.go

package crypto

import "strings"

// Redact returns a string of asterisks of the same length as the input.
// Use for masking secrets in logs (not cryptographically secure).
func Redact(s string) string {
	if s == "" {
		return "(empty)"
	}
	return strings.Repeat("*", len([]rune(s)))
}

// RedactTail masks a credential but keeps the last four characters so a user
// can tell keys apart in CLI output.
func RedactTail(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return Redact(s)
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
