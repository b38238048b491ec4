// pkg/mailer/mailer.go

// Package mailer delivers vault reset emails over SMTP. It is the
// out-of-band channel of the reset protocol; delivery failures are its own
// error domain and are never retried here.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sony/gobreaker"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Config holds SMTP submission settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns the host:port dial target.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SMTP sends reset mail through a relay, behind a circuit breaker so a dead
// relay fails fast instead of stalling every reset request.
type SMTP struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	send    func(msg []byte, to string) error
}

// New returns an SMTP mailer for the given relay.
func New(cfg Config) *SMTP {
	m := &SMTP{
		cfg: cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "smtp",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
	m.send = m.submit
	return m
}

// SendVaultReset delivers the reset link to the recipient.
func (m *SMTP) SendVaultReset(ctx context.Context, recipient, resetURL string) error {
	msg, err := buildResetMessage(m.cfg.From, recipient, resetURL)
	if err != nil {
		return err
	}

	_, err = m.breaker.Execute(func() (any, error) {
		return nil, m.send(msg, recipient)
	})
	if err != nil {
		return fmt.Errorf("smtp delivery: %w", err)
	}

	otelzap.Ctx(ctx).Info("Vault reset email sent", zap.String("recipient", recipient))
	return nil
}

func (m *SMTP) submit(msg []byte, to string) error {
	client, err := smtp.DialStartTLS(m.cfg.Addr(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.cfg.Addr(), err)
	}
	defer client.Close()

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.SendMail(m.cfg.From, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return client.Quit()
}

func buildResetMessage(from, to, resetURL string) ([]byte, error) {
	body, err := renderResetBody(resetURL)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", resetSubject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
