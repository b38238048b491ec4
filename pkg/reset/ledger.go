// pkg/reset/ledger.go

// Package reset implements the vault password-reset handshake: single-use,
// time-limited tokens that authorize replacing a user's envelope without the
// old password, and the destructive reset orchestration itself.
package reset

import (
	"context"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// ErrRateLimited means token issuance is being requested faster than the
// per-user limiter allows.
var ErrRateLimited = cerr.New("reset requests are rate limited, try again later")

// Token is one reset authorization. Consumed tokens never validate again.
type Token struct {
	UserID    string
	Value     string
	ExpiresAt time.Time
	Consumed  bool
}

// TokenRepo is the persistence collaborator boundary for tokens. Upsert
// replaces any previous token for the same user, so at most one outstanding
// token exists per user. Find returns (nil, nil) when no row matches.
type TokenRepo interface {
	Upsert(ctx context.Context, tok *Token) error
	Find(ctx context.Context, userID, value string) (*Token, error)
	MarkConsumed(ctx context.Context, userID, value string) error
}

// Ledger issues, validates and burns reset tokens. It does not deliver
// them; delivery is the mail collaborator's job. Issuance is rate limited
// per user so a flood against one account cannot lock everyone else out of
// recovery.
type Ledger struct {
	repo  TokenRepo
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger's time source. Expiry tests use this to
// move the clock past a token's lifetime.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIssueLimit overrides the per-user issuance rate and burst.
func WithIssueLimit(limit rate.Limit, burst int) Option {
	return func(l *Ledger) { l.limit, l.burst = limit, burst }
}

// NewLedger returns a Ledger over the given repository. Each user gets a
// small burst per minute to slow abuse of the email channel.
func NewLedger(repo TokenRepo, opts ...Option) *Ledger {
	l := &Ledger{
		repo:     repo,
		limit:    rate.Every(time.Minute),
		burst:    5,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	return lim.Allow()
}

// Issue generates a fresh unguessable token for the user, valid for
// TokenTTL, replacing any previously issued token.
func (l *Ledger) Issue(ctx context.Context, userID string) (*Token, error) {
	if userID == "" {
		return nil, vaulterr.ErrNotAuthenticated
	}
	if !l.allow(userID) {
		return nil, ErrRateLimited
	}

	tok := &Token{
		UserID:    userID,
		Value:     uuid.NewString(),
		ExpiresAt: l.now().Add(TokenTTL).UTC(),
		Consumed:  false,
	}

	if err := l.repo.Upsert(ctx, tok); err != nil {
		return nil, vaulterr.Persistence(err, "upsert reset token")
	}

	otelzap.Ctx(ctx).Info("Reset token issued",
		zap.String("user_id", userID),
		zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// Validate reports whether the token authorizes a reset right now. Not
// found, already consumed and expired are indistinguishable to the caller.
func (l *Ledger) Validate(ctx context.Context, userID, value string) (bool, error) {
	if userID == "" {
		return false, vaulterr.ErrNotAuthenticated
	}
	if value == "" {
		return false, nil
	}

	tok, err := l.repo.Find(ctx, userID, value)
	if err != nil {
		return false, vaulterr.Persistence(err, "find reset token")
	}
	if tok == nil || tok.Consumed {
		return false, nil
	}
	if l.now().After(tok.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// Consume burns the token. Called exactly once per successful reset, and
// only after the vault replacement has durably succeeded; consuming first
// would strand the user with no vault and no valid token if the write fails.
func (l *Ledger) Consume(ctx context.Context, userID, value string) error {
	if userID == "" {
		return vaulterr.ErrNotAuthenticated
	}
	if err := l.repo.MarkConsumed(ctx, userID, value); err != nil {
		return vaulterr.Persistence(err, "consume reset token")
	}
	otelzap.Ctx(ctx).Info("Reset token consumed", zap.String("user_id", userID))
	return nil
}
