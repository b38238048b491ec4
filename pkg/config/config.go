// pkg/config/config.go

// Package config loads the service configuration from (in order of
// precedence) environment variables, an optional .env file, and an optional
// YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// AppBaseURL is the public URL reset links point back into.
	AppBaseURL string `mapstructure:"app_base_url" yaml:"app_base_url" validate:"required,url"`

	// DatabaseDSN is the Postgres connection string. Empty selects the
	// in-memory store (dev mode only).
	DatabaseDSN string `mapstructure:"database_dsn" yaml:"database_dsn"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
	SMTP  SMTPConfig  `mapstructure:"smtp" yaml:"smtp"`
}

// RedisConfig configures the optional session mirror.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr" yaml:"addr"`
	Password   string        `mapstructure:"password" yaml:"password"`
	DB         int           `mapstructure:"db" yaml:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// SMTPConfig configures the reset-mail relay.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from" validate:"omitempty,email"`
}

var validate = validator.New()

// Load reads configuration. path may name a YAML file; empty falls back to
// the default search locations. Environment variables use the EFFLUX_
// prefix with underscores (EFFLUX_DATABASE_DSN, EFFLUX_SMTP_HOST, ...).
func Load(path string) (*Config, error) {
	// A .env beside the binary is a dev convenience; ignore its absence.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EFFLUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default registered for AutomaticEnv to surface it
	// through Unmarshal.
	v.SetDefault("app_base_url", "http://localhost:3000")
	v.SetDefault("database_dsn", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_ttl", 8*time.Hour)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("efflux-vault")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "efflux"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// WriteExample writes a commented starter config to path with restrictive
// permissions, since it may later hold SMTP credentials.
func WriteExample(path string) error {
	example := Config{
		AppBaseURL:  "https://chat.example.com",
		DatabaseDSN: "host=localhost user=efflux dbname=efflux port=5432 sslmode=disable",
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			SessionTTL: 8 * time.Hour,
		},
		SMTP: SMTPConfig{
			Host: "smtp.example.com",
			Port: 587,
			From: "noreply@example.com",
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
