package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_SOURCE", "postgresql://localhost/wallet")
	t.Setenv("TOKEN_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgresql://localhost/wallet", cfg.DBSource)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, 24*time.Hour, cfg.TokenTTL)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "production", cfg.Env)
	require.Equal(t, 30*time.Minute, cfg.TokenTTL)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingDBSource(t *testing.T) {
	t.Setenv("DB_SOURCE", "")
	t.Setenv("TOKEN_SECRET", "test-secret")

	_, err := Load()
	require.ErrorContains(t, err, "DB_SOURCE")
}

func TestLoadMissingTokenSecret(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/wallet")
	t.Setenv("TOKEN_SECRET", "")

	_, err := Load()
	require.ErrorContains(t, err, "TOKEN_SECRET")
}

func TestLoadBadTokenTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "TOKEN_TTL")
}
