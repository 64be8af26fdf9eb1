// Package config loads process configuration from environment variables
// layered over an optional declarative YAML file (spec.md §6 "a file-based
// config is also supported as a single declarative document overriding
// defaults"). Grounded on the teacher's own config package: Load returns a
// *Config the rest of the process treats as read-only, and hotreload.go's
// fsnotify watcher can push a freshly Load-ed value into a ChangeHandler.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Level is the process-wide log level, shared by the default slog handler
// and hotreload.go's ChangeHandler: ApplyLogLevel updates it in place on
// every reload, so log verbosity changes without restarting the process
// (spec.md §9's "no mid-flight re-parenting" applies to connections, not
// to this knob).
var Level = new(slog.LevelVar)

// ApplyLogLevel parses cfg.LogLevel into Level. Unrecognized values fall
// back to Info rather than erroring, since a typo in a reloaded file
// should not take down an already-running process.
func ApplyLogLevel(cfg *Config) {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		Level.Set(slog.LevelDebug)
	case "warn", "warning":
		Level.Set(slog.LevelWarn)
	case "error":
		Level.Set(slog.LevelError)
	default:
		Level.Set(slog.LevelInfo)
	}
}

// DatabaseConfig selects and configures the task store backend.
type DatabaseConfig struct {
	// Mode is "standalone" (sqlite) or "managed" (postgres).
	Mode        string `yaml:"mode"`
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`

	// MaxOpenConns/MaxIdleConns size the managed-mode pool. Admission HTTP
	// handlers, every worker goroutine, and the cron poll loop (spec.md §5)
	// all hit the store concurrently from one process, so the pool has to
	// be wide enough to cover WorkerCount-many in-flight claims plus a
	// handful of concurrent API requests without queuing on the driver.
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// RedisConfig points at the Redis instance backing the queue (C2) and the
// cron registry (C3) — spec.md §6's "Redis-style URL for queue and cron
// registry" is a single shared URL, since both are small hash/list/zset
// structures that fit comfortably in one instance.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AdminBootstrap seeds the first user account when `bootstrap-admin` is
// run (spec.md §6 "default admin bootstrap credentials"); no other
// command reads it.
type AdminBootstrap struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Config is the fully resolved process configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminBootstrap `yaml:"admin"`

	JWTSecret string `yaml:"jwt_secret"`

	// Timezone is the single process-wide timezone the cron registry
	// evaluates expressions against (spec.md §4.3).
	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	ListenAddr string `yaml:"listen_addr"`

	// HTTPClientTimeout overrides httpclient.DefaultTimeout when nonzero.
	HTTPClientTimeout time.Duration `yaml:"http_client_timeout"`

	// WorkerCount is the number of goroutines a `worker` process runs,
	// each looping Queue.Claim -> dispatch.Execute (spec.md §5).
	WorkerCount int `yaml:"worker_count"`

	// EncryptionKey is forwarded to internal/crypto for at-rest
	// encryption of callback_token (SPEC_FULL.md §3).
	EncryptionKey string `yaml:"encryption_key"`
}

func defaults() *Config {
	return &Config{
		Database:          DatabaseConfig{Mode: "standalone", SQLitePath: "reqsched.db", MaxOpenConns: 25, MaxIdleConns: 10},
		Timezone:          "UTC",
		LogLevel:          "info",
		ListenAddr:        ":8080",
		HTTPClientTimeout: 60 * time.Second,
		WorkerCount:       4,
	}
}

// Load builds a Config by starting from defaults(), overlaying an optional
// YAML file at path (skipped silently if path is empty or the file does
// not exist — config is meant to be optional, per spec.md §6), and
// finally overlaying environment variables, which always win. This
// ordering matches the teacher's own config.Load precedence (env beats
// file beats built-in default).
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays the environment variable keys spec.md §6 names.
func applyEnv(cfg *Config) {
	if v := firstNonEmpty("PG_URL", "POSTGRES_URL", "DB_URL"); v != "" {
		cfg.Database.PostgresDSN = v
		cfg.Database.Mode = "managed"
	}
	if v := os.Getenv("REQSCHED_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("REQSCHED_ENCRYPTION_KEY"); v != "" {
		cfg.EncryptionKey = v
	}
	if v := firstNonEmpty("TZ", "TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ADMIN_NAME"); v != "" {
		cfg.Admin.Name = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Admin.Email = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerCount = n
		}
	}
	if v := os.Getenv("HTTP_CLIENT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPClientTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Database.MaxOpenConns = n
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Database.MaxIdleConns = n
		}
	}
}

func firstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Location resolves the configured timezone to a *time.Location, falling
// back to UTC if the name is unrecognized.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
