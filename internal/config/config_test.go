package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, 5*time.Second, cfg.Aggregation.ProviderTimeout)
	assert.Equal(t, 24*time.Hour, cfg.WriteBack.DefaultTTL)
	assert.Equal(t, 5*time.Minute, cfg.WriteBack.EphemeralTTL)
	assert.Equal(t, 100, cfg.WriteBack.MaxContexts)
	assert.Equal(t, "ctxhub-default", cfg.Provider.ID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("AGGREGATION_PROVIDER_TIMEOUT", "250ms")
	t.Setenv("PERMISSION_AUTO_ALLOW", "example.com, app.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Aggregation.ProviderTimeout)
	assert.Equal(t, []string{"example.com", "app.example.com"}, cfg.Permission.AutoAllow)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("AGGREGATION_PROVIDER_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_OK(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadBackend(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Storage.Backend = "sqlite"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
}

func TestValidate_PostgresNeedsPassword(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Storage.Backend = "postgres"
	cfg.DB.Password = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Server.Port = 0
	cfg.WriteBack.MaxContexts = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "WRITEBACK_MAX_CONTEXTS")
}
