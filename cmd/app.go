/* cmd/app.go */

package cmd

import (
	cerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/effluxlabs/efflux-vault/pkg/config"
	"github.com/effluxlabs/efflux-vault/pkg/mailer"
	"github.com/effluxlabs/efflux-vault/pkg/provider"
	"github.com/effluxlabs/efflux-vault/pkg/reset"
	"github.com/effluxlabs/efflux-vault/pkg/session"
	"github.com/effluxlabs/efflux-vault/pkg/vault"
	"github.com/effluxlabs/efflux-vault/pkg/vaultdb"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
)

// app wires the configured stores and services for one CLI invocation.
type app struct {
	cfg      *config.Config
	vaults   *vault.Store
	ledger   *reset.Ledger
	resetter *reset.Resetter
	session  *session.Cache
	ai       *provider.Manager
}

func newApp(rc *runContext) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cerr.Wrap(err, "load configuration")
	}

	var (
		envRepo vault.EnvelopeRepo
		tokRepo reset.TokenRepo
	)
	if cfg.DatabaseDSN == "" {
		rc.Log.Warn("no database configured, using in-memory store; data will not survive this process")
		mem := vaultdb.NewMemory()
		envRepo, tokRepo = mem, mem
	} else {
		pg, err := vaultdb.Connect(rc.Ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, cerr.Wrap(err, "connect to database")
		}
		envRepo, tokRepo = pg, pg
	}

	vaults := vault.New(envRepo)
	ledger := reset.NewLedger(tokRepo)
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	var mirror session.Mirror
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := cfg.Redis.SessionTTL
		if ttl == 0 {
			ttl = session.DefaultSessionTTL
		}
		mirror = session.NewRedisMirror(client, ttl)
		rc.Log.Debug("session mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	return &app{
		cfg:      cfg,
		vaults:   vaults,
		ledger:   ledger,
		resetter: reset.NewResetter(vaults, ledger, mail, cfg.AppBaseURL),
		session:  session.NewCache(mirror, userID),
		ai:       provider.NewManager(),
	}, nil
}

// requireUser guards every per-user operation behind an explicit identity.
func requireUser() error {
	if userID == "" {
		return vaulterr.NewExpectedError(cerr.WithHint(vaulterr.ErrNotAuthenticated, "pass --user <id>"))
	}
	return nil
}
