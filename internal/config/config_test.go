package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "5000", cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.JWT.AuthTokenTTL)
	require.Equal(t, time.Hour, cfg.Cache.Duration)
	require.Equal(t, "local", cfg.Plugins.Auth.Type)
	require.Equal(t, "local", cfg.Plugins.Source.Type)
	require.Equal(t, "local", cfg.Plugins.Annotations.Type)
	require.Equal(t, "memory", cfg.Revocation.Backend)
	require.True(t, cfg.RateLimit.Enabled)
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_PluginConfigBlob(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("PLUGIN_SOURCE_TYPE", "http")
	t.Setenv("PLUGIN_SOURCE_CONFIG", `{"base_url":"https://pdfs.internal/","timeout_seconds":10}`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http", cfg.Plugins.Source.Type)
	require.Equal(t, "https://pdfs.internal/", cfg.Plugins.Source.Config.String("base_url", ""))
	require.Equal(t, 10, cfg.Plugins.Source.Config.Int("timeout_seconds", 0))
}

func TestLoadConfig_RejectsMalformedPluginBlob(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("PLUGIN_AUTH_CONFIG", "{broken")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_RejectsUnknownRevocationBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("REVOCATION_BACKEND", "etcd")

	_, err := LoadConfig()
	require.Error(t, err)
}
