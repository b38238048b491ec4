// pkg/vaultdb/postgres.go

// Package vaultdb provides the persistence collaborators behind the vault
// store and the reset-token ledger: a Postgres implementation for real
// deployments and an in-memory one for tests and dev mode.
package vaultdb

import (
	"context"
	"errors"
	"time"

	"github.com/effluxlabs/efflux-vault/pkg/reset"
	"github.com/effluxlabs/efflux-vault/pkg/vault"
	"github.com/effluxlabs/efflux-vault/pkg/vaulterr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// envelopeModel maps to the user_vault table. Column names match the schema
// the web client writes, so both front ends share one table.
type envelopeModel struct {
	UserID        string    `gorm:"column:user_id;primaryKey"`
	EncryptedData string    `gorm:"column:encrypted_data;not null"`
	Salt          string    `gorm:"column:salt;not null"`
	IV            string    `gorm:"column:iv;not null"`
	Version       int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (envelopeModel) TableName() string { return "user_vault" }

// resetTokenModel maps to vault_reset_tokens. One row per user: issuing a
// new token replaces the previous one.
type resetTokenModel struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Token     string    `gorm:"column:token;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	Used      bool      `gorm:"column:used;not null;default:false"`
}

func (resetTokenModel) TableName() string { return "vault_reset_tokens" }

// Postgres implements vault.EnvelopeRepo and reset.TokenRepo over GORM.
type Postgres struct {
	db *gorm.DB
}

// Connect opens a Postgres connection, verifies it and migrates the two
// tables the core owns.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := db.AutoMigrate(&envelopeModel{}, &resetTokenModel{}); err != nil {
		return nil, err
	}

	return &Postgres{db: db}, nil
}

// Health pings the database with a short timeout.
func (p *Postgres) Health(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// --- vault.EnvelopeRepo ---

func (p *Postgres) Get(ctx context.Context, userID string) (*vault.Record, error) {
	var m envelopeModel
	err := p.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vault.Record{
		UserID:     m.UserID,
		Ciphertext: m.EncryptedData,
		Salt:       m.Salt,
		IV:         m.IV,
		Version:    m.Version,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *vault.Record) error {
	err := p.db.WithContext(ctx).Create(&envelopeModel{
		UserID:        rec.UserID,
		EncryptedData: rec.Ciphertext,
		Salt:          rec.Salt,
		IV:            rec.IV,
		Version:       rec.Version,
		UpdatedAt:     rec.UpdatedAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return vaulterr.ErrVaultExists
	}
	return err
}

// Update is the compare-and-swap: the row is rewritten only if its version
// still matches what the caller read.
func (p *Postgres) Update(ctx context.Context, rec *vault.Record, expectedVersion int64) error {
	res := p.db.WithContext(ctx).
		Model(&envelopeModel{}).
		Where("user_id = ? AND version = ?", rec.UserID, expectedVersion).
		Updates(map[string]any{
			"encrypted_data": rec.Ciphertext,
			"salt":           rec.Salt,
			"iv":             rec.IV,
			"version":        rec.Version,
			"updated_at":     rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vaulterr.ErrConcurrentModification
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, userID string) error {
	return p.db.WithContext(ctx).Delete(&envelopeModel{}, "user_id = ?", userID).Error
}

func (p *Postgres) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&envelopeModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

// --- reset.TokenRepo ---

func (p *Postgres) Upsert(ctx context.Context, tok *reset.Token) error {
	m := resetTokenModel{
		UserID:    tok.UserID,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Used:      tok.Consumed,
	}
	return p.db.WithContext(ctx).Save(&m).Error
}

func (p *Postgres) Find(ctx context.Context, userID, value string) (*reset.Token, error) {
	var m resetTokenModel
	err := p.db.WithContext(ctx).
		First(&m, "user_id = ? AND token = ?", userID, value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reset.Token{
		UserID:    m.UserID,
		Value:     m.Token,
		ExpiresAt: m.ExpiresAt,
		Consumed:  m.Used,
	}, nil
}

func (p *Postgres) MarkConsumed(ctx context.Context, userID, value string) error {
	return p.db.WithContext(ctx).
		Model(&resetTokenModel{}).
		Where("user_id = ? AND token = ?", userID, value).
		Update("used", true).Error
}
