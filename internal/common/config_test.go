package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 8190, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Login.PollInterval)
	assert.Equal(t, 150*time.Second, cfg.Login.QRLifetime)
	assert.Equal(t, 3, cfg.Login.MaxQRRefreshes)
	assert.Equal(t, 300*time.Second, cfg.Login.LoginTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Proxy.CacheTTL)
	assert.True(t, cfg.Proxy.AllowDirectConnection)
	assert.NotEmpty(t, cfg.Login.Site.QRSelectors)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vantage.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"

[server]
port = 9000

[login]
max_qr_refreshes = 5

[login.site]
name = "tiktok"
login_url = "https://www.tiktok.com/login"
`), 0644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Login.MaxQRRefreshes)
	assert.Equal(t, "tiktok", cfg.Login.Site.Name)
	// Untouched values keep their defaults
	assert.Equal(t, 2*time.Second, cfg.Login.PollInterval)
	assert.True(t, cfg.IsProduction())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.toml")
	second := filepath.Join(dir, "second.toml")
	require.NoError(t, os.WriteFile(first, []byte("[server]\nport = 9000\n"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("[server]\nport = 9100\n"), 0644))

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("VANTAGE_SERVER_PORT", "9200")
	t.Setenv("VANTAGE_LOG_LEVEL", "debug")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/vantage.toml")
	assert.Error(t, err)
}

func TestLoadFromFiles_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vantage.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 99999\n"), 0644))

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 9300, "0.0.0.0")
	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Zero values leave the config untouched
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
