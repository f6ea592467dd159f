package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PMAI_AUTH_JWT_SECRET", "test-secret-0123456789")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "openai", cfg.Gateway.Provider)
	assert.Equal(t, 0, cfg.Quota.FreeMessages, "quota disabled by default")
	assert.Empty(t, cfg.Admin.Emails)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("PMAI_AUTH_JWT_SECRET", "test-secret-0123456789")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
gateway:
  provider: gemini
  model: gemini-2.0-flash
admin:
  emails:
    - boss@example.com
quota:
  free_messages: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Gateway.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gateway.Model)
	assert.Equal(t, []string{"boss@example.com"}, cfg.Admin.Emails)
	assert.Equal(t, 3, cfg.Quota.FreeMessages)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PMAI_AUTH_JWT_SECRET", "test-secret-0123456789")
	t.Setenv("PMAI_SERVER_PORT", "7777")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("PMAI_AUTH_JWT_SECRET", "test-secret-0123456789")
		t.Setenv("PMAI_STORE_DRIVER", "mongodb")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("PMAI_AUTH_JWT_SECRET", "test-secret-0123456789")
		t.Setenv("PMAI_GATEWAY_PROVIDER", "llama")
		_, err := Load("")
		require.Error(t, err)
	})
}
