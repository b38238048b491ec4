// pkg/crypto/envelope_test.go

package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		password  string
	}{
		{
			name:      "simple secret",
			plaintext: []byte(`{"openai":"sk-abc"}`),
			password:  "correct-horse",
		},
		{
			name:      "empty plaintext",
			plaintext: []byte{},
			password:  "p",
		},
		{
			name:      "binary plaintext",
			plaintext: []byte{0x00, 0xff, 0x10, 0x80, 0x7f},
			password:  "binary-pass",
		},
		{
			name:      "unicode password",
			plaintext: []byte("payload"),
			password:  "测试密码🔒",
		},
		{
			name:      "large plaintext",
			plaintext: []byte(strings.Repeat("key-material-", 1024)),
			password:  "long-haul",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Seal(tt.plaintext, tt.password)
			require.NoError(t, err)
			require.NotEmpty(t, env.Ciphertext)
			require.NotEmpty(t, env.Salt)
			require.NotEmpty(t, env.IV)

			got, err := Open(env, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestOpenWrongPassword(t *testing.T) {
	env, err := Seal([]byte("secret material"), "password-one")
	require.NoError(t, err)

	_, err = Open(env, "password-two")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	// The error must not mention either password.
	assert.NotContains(t, err.Error(), "password-one")
	assert.NotContains(t, err.Error(), "password-two")
}

func TestSealFreshness(t *testing.T) {
	plaintext := []byte("same plaintext")
	password := "same password"

	first, err := Seal(plaintext, password)
	require.NoError(t, err)
	second, err := Seal(plaintext, password)
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt, "salt must be regenerated per seal")
	assert.NotEqual(t, first.IV, second.IV, "nonce must be regenerated per seal")
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)

	// Both still open.
	for _, env := range []*Envelope{first, second} {
		got, err := Open(env, password)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestOpenTamperDetection(t *testing.T) {
	env, err := Seal([]byte("integrity matters"), "pw")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)

	// Flip one bit at every byte position, covering ciphertext body and the
	// appended GCM tag alike.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		tampered := &Envelope{
			Ciphertext: base64.StdEncoding.EncodeToString(mutated),
			Salt:       env.Salt,
			IV:         env.IV,
		}
		_, err := Open(tampered, "pw")
		assert.ErrorIs(t, err, ErrDecryptionFailed, "bit flip at byte %d must not decrypt", i)
	}
}

func TestOpenGarbageEnvelope(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{
			name: "not base64",
			env:  Envelope{Ciphertext: "!!not-base64!!", Salt: "AAAA", IV: "AAAA"},
		},
		{
			name: "empty fields",
			env:  Envelope{},
		},
		{
			name: "truncated nonce",
			env: Envelope{
				Ciphertext: base64.StdEncoding.EncodeToString([]byte("x")),
				Salt:       base64.StdEncoding.EncodeToString(make([]byte, SaltSize)),
				IV:         base64.StdEncoding.EncodeToString(make([]byte, 4)),
			},
		},
		{
			name: "short salt",
			env: Envelope{
				Ciphertext: base64.StdEncoding.EncodeToString([]byte("x")),
				Salt:       base64.StdEncoding.EncodeToString(make([]byte, 4)),
				IV:         base64.StdEncoding.EncodeToString(make([]byte, NonceSize)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(&tt.env, "whatever")
			assert.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

func TestSecureZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	SecureZero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestGeneratePassword(t *testing.T) {
	p1, err := GeneratePassword(32)
	require.NoError(t, err)
	assert.Len(t, p1, 32)

	p2, err := GeneratePassword(32)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	// Zero or negative lengths fall back to the default.
	p3, err := GeneratePassword(0)
	require.NoError(t, err)
	assert.Len(t, p3, 32)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "(empty)", Redact(""))
	assert.Equal(t, "******", Redact("secret"))
	assert.Equal(t, "******s-1x", RedactTail("sk-abcs-1x"))
	assert.Equal(t, "***", RedactTail("abc"))
}
