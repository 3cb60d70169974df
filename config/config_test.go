package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		API:     APIConfig{BaseURL: "http://localhost:8080/api", Timeout: 10 * time.Second, RPS: 10, Burst: 20},
		Storage: StorageConfig{Backend: "sqlite", DataDir: "/tmp/library"},
	}
}

// clearEnv unsets keys for the test. Values set by a loaded .env file are
// removed again afterwards.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		k := k
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}
}

var envKeys = []string{
	"LIBRARY_ENV", "LIBRARY_LOG_LEVEL", "LIBRARY_LOG_FORMAT", "LIBRARY_API_URL",
	"LIBRARY_API_TIMEOUT", "LIBRARY_API_RPS", "LIBRARY_API_BURST", "LIBRARY_API_UNSUPPORTED",
	"LIBRARY_STORAGE", "LIBRARY_DATA_DIR", "LIBRARY_REDIS_ADDR", "LIBRARY_REDIS_DB",
	"LIBRARY_CONFIG", "LIBRARY_CACHE_SWEEP", "LIBRARY_NOTIFY_WINDOW",
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"environment", func(c *Config) { c.App.Environment = "test" }},
		{"log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }},
		{"relative api url", func(c *Config) { c.API.BaseURL = "localhost:8080" }},
		{"api scheme", func(c *Config) { c.API.BaseURL = "ftp://example.com" }},
		{"timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"rps", func(c *Config) { c.API.RPS = 0 }},
		{"backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"sqlite without dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis"; c.Storage.RedisAddr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, envKeys...)
	dir := t.TempDir()

	cfg, err := Load(newFlags(t, "--env-file", filepath.Join(dir, "missing.env"), "--data-dir", dir))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10.0, cfg.API.RPS)
	assert.Equal(t, 20, cfg.API.Burst)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "library.db"), cfg.DBPath())
	assert.Equal(t, "@every 1m", cfg.Cache.SweepSchedule)
	assert.Equal(t, 5*time.Second, cfg.Notify.SuppressWindow)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t, envKeys...)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
env: staging
log:
  level: warn
api:
  base_url: https://file.example.com/api
  timeout: 3s
  rps: "4"
  unsupported: [users, overview]
storage:
  backend: memory
`), 0o600))

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("LIBRARY_LOG_LEVEL=debug\nLIBRARY_API_TIMEOUT=4s\n"), 0o600))

	t.Setenv("LIBRARY_API_TIMEOUT", "5s")

	cfg, err := Load(newFlags(t,
		"--config", yamlPath,
		"--env-file", envPath,
		"--api-url", "https://flag.example.com/api",
	))
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com/api", cfg.API.BaseURL, "flag beats everything")
	assert.Equal(t, 5*time.Second, cfg.API.Timeout, "environment beats .env")
	assert.Equal(t, "debug", cfg.Logger.Level, ".env beats file")
	assert.Equal(t, "staging", cfg.App.Environment, "file beats default")
	assert.Equal(t, 4.0, cfg.API.RPS)
	assert.Equal(t, []string{"users", "overview"}, cfg.API.Unsupported)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	missingEnv := filepath.Join(dir, "missing.env")

	t.Run("duration", func(t *testing.T) {
		clearEnv(t, envKeys...)
		t.Setenv("LIBRARY_API_TIMEOUT", "soon")
		_, err := Load(newFlags(t, "--env-file", missingEnv, "--data-dir", dir))
		assert.ErrorContains(t, err, "invalid timeout")
	})

	t.Run("unsupported list from env", func(t *testing.T) {
		clearEnv(t, envKeys...)
		t.Setenv("LIBRARY_API_UNSUPPORTED", "users, loans ,")
		cfg, err := Load(newFlags(t, "--env-file", missingEnv, "--data-dir", dir))
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "loans"}, cfg.API.Unsupported)
	})

	t.Run("missing config file", func(t *testing.T) {
		clearEnv(t, envKeys...)
		_, err := Load(newFlags(t, "--env-file", missingEnv, "--config", filepath.Join(dir, "nope.yaml")))
		assert.ErrorContains(t, err, "read config file")
	})
}
