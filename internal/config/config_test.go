package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:5000/api", cfg.Console.APIBase)
	assert.Equal(t, 15*time.Second, cfg.Console.RequestTimeout)
	assert.True(t, cfg.Server.OpenRegistration)
	assert.Equal(t, time.Hour, cfg.Server.ResetTokenTTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  database_url: "file:college.db"
  token_ttl: 2h
  require_auth: true
console:
  api_base: "http://api.internal:7000/api"
  session_idle: 5m
log:
  level: debug
`), 0o600))

	t.Setenv("JWT_SECRET", "a-much-longer-test-secret")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("SEED", "false")
	t.Setenv("OPEN_REGISTRATION", "false")
	t.Setenv("RESET_TOKEN_TTL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "file:college.db", cfg.Server.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.Server.TokenTTL)
	assert.True(t, cfg.Server.RequireAuth)
	assert.False(t, cfg.Server.Seed)
	assert.False(t, cfg.Server.OpenRegistration)
	assert.Equal(t, 15*time.Minute, cfg.Server.ResetTokenTTL)
	assert.Equal(t, "a-much-longer-test-secret", cfg.Server.JWTSecret)
	assert.Equal(t, "http://api.internal:7000/api", cfg.Console.APIBase)
	assert.Equal(t, 3*time.Second, cfg.Console.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Console.SessionIdle)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWTSecret")
}

func TestLoad_BadBool(t *testing.T) {
	t.Setenv("REQUIRE_AUTH", "maybe")
	_, err := Load("")
	assert.ErrorContains(t, err, "REQUIRE_AUTH")
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "chatty"
	assert.Error(t, Validate(cfg))
}
