// pkg/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.AppBaseURL)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 8*time.Hour, cfg.Redis.SessionTTL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "efflux-vault.yaml")
	content := `app_base_url: https://chat.example.com
database_dsn: host=db user=efflux dbname=efflux
smtp:
  host: smtp.example.com
  port: 465
  from: noreply@example.com
redis:
  addr: localhost:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.AppBaseURL)
	assert.Equal(t, "host=db user=efflux dbname=efflux", cfg.DatabaseDSN)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EFFLUX_APP_BASE_URL", "https://env.example.com")
	t.Setenv("EFFLUX_SMTP_HOST", "relay.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.AppBaseURL)
	assert.Equal(t, "relay.example.com", cfg.SMTP.Host)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EFFLUX_APP_BASE_URL", "not a url")

	_, err := Load("")
	assert.Error(t, err)
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "efflux-vault.yaml")
	require.NoError(t, WriteExample(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.AppBaseURL)
}
