package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
bot:
  appid: "10001"
  appsecret: "secret"
  qq: "123456"
network:
  port: 443
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10001", cfg.Bot.AppID)
	assert.Equal(t, 443, cfg.Network.Port)
	// Untouched fields keep their defaults.
	assert.Equal(t, "/webhook", cfg.Network.Path)
	assert.Equal(t, 4, cfg.Gateway.Workers)
	assert.Equal(t, 10*time.Second, cfg.Gateway.ShutdownGrace)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AXTGATE_BOT_APPID", "10001")
	t.Setenv("AXTGATE_BOT_APPSECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Network.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
bot:
  appid: "10001"
  appsecret: "secret"
network:
  port: 8080
`)
	t.Setenv("AXTGATE_PORT", "8443")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8443, cfg.Network.Port)
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Bot.AppID = "10001"
	cfg.Bot.AppSecret = "secret"
	cfg.Network.Port = 3000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "80, 443, 8080, 8443")
}

func TestValidateRejectsBadPath(t *testing.T) {
	cfg := Default()
	cfg.Bot.AppID = "10001"
	cfg.Bot.AppSecret = "secret"
	cfg.Network.Path = "webhook"

	require.Error(t, cfg.Validate())
}
