// Package config loads client configuration from command-line flags,
// environment variables, a .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	API     APIConfig
	Storage StorageConfig
	Cache   CacheConfig
	Notify  NotifyConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty; empty picks by environment
}

// APIConfig describes the remote library API.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration // per request (default: 10s)
	RPS     float64       // outbound requests per second (default: 10)
	Burst   int
	// Unsupported lists admin capabilities the server does not implement.
	Unsupported []string
}

// StorageConfig selects where the cart and token are kept.
type StorageConfig struct {
	Backend       string // sqlite, redis or memory
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// CacheConfig controls the query cache collector.
type CacheConfig struct {
	SweepSchedule string // cron schedule (default: @every 1m)
}

// NotifyConfig controls user notifications.
type NotifyConfig struct {
	SuppressWindow time.Duration
}

// DBPath is the sqlite database inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "library.db")
}

// fileConfig mirrors the YAML file. Every value is a string so that all
// sources go through the same parsing.
type fileConfig struct {
	Env string `yaml:"env"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	API struct {
		BaseURL     string   `yaml:"base_url"`
		Timeout     string   `yaml:"timeout"`
		RPS         string   `yaml:"rps"`
		Burst       string   `yaml:"burst"`
		Unsupported []string `yaml:"unsupported"`
	} `yaml:"api"`
	Storage struct {
		Backend       string `yaml:"backend"`
		DataDir       string `yaml:"data_dir"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       string `yaml:"redis_db"`
		RedisPrefix   string `yaml:"redis_prefix"`
	} `yaml:"storage"`
	Cache struct {
		SweepSchedule string `yaml:"sweep_schedule"`
	} `yaml:"cache"`
	Notify struct {
		SuppressWindow string `yaml:"suppress_window"`
	} `yaml:"notify"`
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to YAML config file")
	fs.String("env-file", ".env", "Path to .env file")
	fs.String("env", "", "Environment (development, staging, production)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-format", "", "Log format (json, pretty)")
	fs.String("api-url", "", "Base URL of the library API")
	fs.String("timeout", "", "Per-request timeout (default: 10s)")
	fs.String("rps", "", "Outbound requests per second (default: 10)")
	fs.String("storage", "", "Storage backend: sqlite, redis or memory (default: sqlite)")
	fs.String("data-dir", "", "Directory for the local database and keys")
	fs.String("redis-addr", "", "Redis address for the redis storage backend")
}

// Load builds the configuration with precedence:
// 1. Command-line flags set on fs (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. YAML config file.
// 5. Default values (lowest priority).
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	l := loader{fs: fs}

	// A missing .env file is fine. godotenv never overrides variables that are already set.
	if envFile := l.flag("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path := l.value("config", "LIBRARY_CONFIG", "", ""); path != "" {
		if err := l.readFile(path); err != nil {
			return nil, err
		}
	}
	f := &l.file

	cfg := &Config{
		App: AppConfig{
			Environment: l.value("env", "LIBRARY_ENV", f.Env, "development"),
		},
		Logger: LoggerConfig{
			Level:  l.value("log-level", "LIBRARY_LOG_LEVEL", f.Log.Level, "info"),
			Format: l.value("log-format", "LIBRARY_LOG_FORMAT", f.Log.Format, ""),
		},
		API: APIConfig{
			BaseURL:     l.value("api-url", "LIBRARY_API_URL", f.API.BaseURL, "http://localhost:8080/api"),
			Unsupported: f.API.Unsupported,
		},
		Storage: StorageConfig{
			Backend:       l.value("storage", "LIBRARY_STORAGE", f.Storage.Backend, "sqlite"),
			RedisAddr:     l.value("redis-addr", "LIBRARY_REDIS_ADDR", f.Storage.RedisAddr, "localhost:6379"),
			RedisPassword: l.value("", "LIBRARY_REDIS_PASSWORD", f.Storage.RedisPassword, ""),
			RedisPrefix:   l.value("", "LIBRARY_REDIS_PREFIX", f.Storage.RedisPrefix, "library"),
		},
		Cache: CacheConfig{
			SweepSchedule: l.value("", "LIBRARY_CACHE_SWEEP", f.Cache.SweepSchedule, "@every 1m"),
		},
	}

	if v := l.value("", "LIBRARY_API_UNSUPPORTED", "", ""); v != "" {
		cfg.API.Unsupported = splitList(v)
	}

	var err error
	if cfg.API.Timeout, err = parseDuration("timeout", l.value("timeout", "LIBRARY_API_TIMEOUT", f.API.Timeout, "10s")); err != nil {
		return nil, err
	}
	if cfg.Notify.SuppressWindow, err = parseDuration("suppress window", l.value("", "LIBRARY_NOTIFY_WINDOW", f.Notify.SuppressWindow, "5s")); err != nil {
		return nil, err
	}

	rps := l.value("rps", "LIBRARY_API_RPS", f.API.RPS, "10")
	if cfg.API.RPS, err = strconv.ParseFloat(rps, 64); err != nil {
		return nil, fmt.Errorf("invalid rps %q: %w", rps, err)
	}
	burst := l.value("", "LIBRARY_API_BURST", f.API.Burst, "20")
	if cfg.API.Burst, err = strconv.Atoi(burst); err != nil {
		return nil, fmt.Errorf("invalid burst %q: %w", burst, err)
	}
	redisDB := l.value("", "LIBRARY_REDIS_DB", f.Storage.RedisDB, "0")
	if cfg.Storage.RedisDB, err = strconv.Atoi(redisDB); err != nil {
		return nil, fmt.Errorf("invalid redis db %q: %w", redisDB, err)
	}

	dataDir, err := expandDataDir(l.value("data-dir", "LIBRARY_DATA_DIR", f.Storage.DataDir, ""))
	if err != nil {
		return nil, fmt.Errorf("invalid data dir: %w", err)
	}
	cfg.Storage.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Logger.Format != "" && c.Logger.Format != "json" && c.Logger.Format != "pretty" {
		return fmt.Errorf("invalid log format: %q (must be json or pretty)", c.Logger.Format)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url: %q (must be an absolute http or https URL)", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.API.RPS <= 0 || c.API.Burst <= 0 {
		return errors.New("api rps and burst must be positive")
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.DataDir == "" {
			return errors.New("data dir is required for sqlite storage")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return errors.New("redis address is required for redis storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %q (must be sqlite, redis, or memory)", c.Storage.Backend)
	}

	if c.Notify.SuppressWindow < 0 {
		return errors.New("notify suppress window cannot be negative")
	}
	return nil
}

type loader struct {
	fs   *pflag.FlagSet
	file fileConfig
}

// flag returns a flag's value, changed or default.
func (l *loader) flag(name string) string {
	if l.fs == nil {
		return ""
	}
	f := l.fs.Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// value returns the first non-empty value from a changed flag, the
// environment, the config file or the default.
func (l *loader) value(flagName, envKey, fileValue, defaultValue string) string {
	if l.fs != nil && flagName != "" {
		if f := l.fs.Lookup(flagName); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

func (l *loader) readFile(path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the --config flag
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &l.file); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func parseDuration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandDataDir expands ~ and makes the path absolute. Empty means the user
// config directory.
func expandDataDir(path string) (string, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
		return filepath.Join(dir, "library-storefront"), nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}
