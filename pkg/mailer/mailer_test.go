// pkg/mailer/mailer_test.go

package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderResetBody(t *testing.T) {
	body, err := renderResetBody("https://chat.example.com/vault-reset?token=abc-123")
	require.NoError(t, err)

	html := string(body)
	assert.Contains(t, html, `href="https://chat.example.com/vault-reset?token=abc-123"`)
	assert.Contains(t, html, "expire in 24 hours")
	assert.Contains(t, html, "please ignore this email")
}

func TestRenderResetBodyEscapes(t *testing.T) {
	body, err := renderResetBody(`"><script>alert(1)</script>`)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "<script>")
}

func TestBuildResetMessage(t *testing.T) {
	msg, err := buildResetMessage("noreply@efflux.app", "user@example.com", "https://chat.example.com/vault-reset?token=t")
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, "From: noreply@efflux.app\r\n")
	assert.Contains(t, s, "To: user@example.com\r\n")
	assert.Contains(t, s, "Subject: ")
	assert.Contains(t, s, "Content-Type: text/html")
	assert.Contains(t, s, "vault-reset?token=t")
}

func TestSendVaultReset(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: 587, From: "noreply@efflux.app"})

	var gotTo string
	var gotMsg []byte
	m.send = func(msg []byte, to string) error {
		gotMsg, gotTo = msg, to
		return nil
	}

	err := m.SendVaultReset(context.Background(), "user@example.com", "https://chat.example.com/vault-reset?token=x")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", gotTo)
	assert.Contains(t, string(gotMsg), "vault-reset?token=x")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: 587, From: "noreply@efflux.app"})
	m.send = func([]byte, string) error {
		return errors.New("connection refused")
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := m.SendVaultReset(ctx, "user@example.com", "https://x/vault-reset?token=t")
		require.Error(t, err)
	}

	// Breaker is now open: the relay is no longer dialed at all.
	dialed := false
	m.send = func([]byte, string) error {
		dialed = true
		return nil
	}
	err := m.SendVaultReset(ctx, "user@example.com", "https://x/vault-reset?token=t")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, dialed)
}
