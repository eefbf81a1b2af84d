package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadgen.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://api.apollo.io", cfg.Apollo.BaseURL)
	assert.Empty(t, cfg.Apollo.Key)
	assert.InDelta(t, 5.0, cfg.Apollo.RateLimit, 0.001)
	assert.Equal(t, 2, cfg.Apollo.Retry.MaxAttempts)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1000), cfg.Anthropic.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Anthropic.Temperature, 0.001)
	assert.Equal(t, 60, cfg.Pipeline.Threshold)
	assert.Equal(t, 10, cfg.Pipeline.StageTimeoutSecs)
	assert.Equal(t, 3, cfg.Pipeline.PerPageMultiplier)
	assert.Equal(t, 100, cfg.Pipeline.MaxPerPage)
	assert.Equal(t, 900, cfg.Pipeline.HoldTTLSecs)
	assert.Equal(t, map[string]int{"free": 5, "starter": 100, "pro": 400, "growth": 1500}, cfg.Plans)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leadgen
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  threshold: 70
scoring:
  points:
    has_email: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leadgen", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 70, cfg.Pipeline.Threshold)
	assert.Equal(t, 5, cfg.Scoring.Points["has_email"])
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.Pipeline.MaxPerPage)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADGEN_STORE_DRIVER", "postgres")
	t.Setenv("LEADGEN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvSecrets(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADGEN_APOLLO_KEY", "apollo-key")
	t.Setenv("LEADGEN_AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("LEADGEN_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "apollo-key", cfg.Apollo.Key)
	assert.Equal(t, "jwt-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leadgen.db"
	cfg.Server.Port = 8080
	cfg.Auth.JWTSecret = "secret"
	cfg.Apollo.Retry.MaxAttempts = 2
	cfg.Pipeline.Threshold = 60
	cfg.Pipeline.StageTimeoutSecs = 10
	cfg.Pipeline.MaxPerPage = 100
	cfg.Plans = map[string]int{"free": 5}
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Auth.JWTSecret = ""
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateGenerate_NoSecretNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Auth.JWTSecret = ""

	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateStore_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidatePipelineBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.Threshold = 101
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.threshold")

	cfg.Pipeline.Threshold = 60
	cfg.Pipeline.MaxPerPage = 500
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.max_per_page")

	cfg.Pipeline.MaxPerPage = 100
	cfg.Pipeline.HoldTTLSecs = -1
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.hold_ttl_secs")

	cfg.Pipeline.HoldTTLSecs = 0
	cfg.Plans["pro"] = -1
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "plans.pro")
}

func TestLoadFileExplicit(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "leadgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadFileMissing(t *testing.T) {
	dir := chdirTemp(t)

	_, err := LoadFile(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}
