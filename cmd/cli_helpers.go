package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nlbx/reqsched/internal/config"
	"github.com/nlbx/reqsched/internal/crypto"
	"github.com/nlbx/reqsched/internal/httpclient"
	"github.com/nlbx/reqsched/internal/store"
	"github.com/nlbx/reqsched/internal/store/memstore"
	"github.com/nlbx/reqsched/internal/store/pg"
	"github.com/nlbx/reqsched/internal/store/sqlitestore"
)

// stores bundles the three store contracts plus a close func, so every
// subcommand that touches the database opens exactly one backend and
// closes it on exit, regardless of which mode is configured.
type stores struct {
	Tasks   store.TaskStore
	Users   store.UserStore
	ApiKeys store.ApiKeyStore
	Close   func() error
}

// openStores opens the backend selected by cfg.Database.Mode: managed
// (Postgres, via jackc/pgx's stdlib driver) or standalone (SQLite, via
// modernc.org/sqlite). Managed mode assumes migrations have already been
// applied (`reqsched migrate up`); standalone mode applies its inline
// schema itself since there is no separate migration step for a
// single-file deployment.
func openStores(cfg *config.Config) (*stores, error) {
	enc, err := crypto.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	if cfg.Database.Mode == "managed" {
		if cfg.Database.PostgresDSN == "" {
			return nil, fmt.Errorf("managed mode requires PG_URL/POSTGRES_URL/DB_URL")
		}
		db, err := pg.OpenDB(cfg.Database.PostgresDSN, pg.PoolConfig{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		return &stores{
			Tasks:   pg.NewTaskStore(db, enc),
			Users:   pg.NewUserStore(db),
			ApiKeys: pg.NewApiKeyStore(db),
			Close:   db.Close,
		}, nil
	}

	path := cfg.Database.SQLitePath
	if path == "" {
		path = "reqsched.db"
	}
	db, err := sqlitestore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &stores{
		Tasks:   sqlitestore.NewTaskStore(db, enc),
		Users:   sqlitestore.NewUserStore(db),
		ApiKeys: sqlitestore.NewApiKeyStore(db),
		Close:   db.Close,
	}, nil
}

// memStores builds an in-process, non-durable backend. No subcommand
// calls it; every subcommand, `doctor` included, opens its backend with
// openStores.
func memStores() *stores {
	s := memstore.New()
	return &stores{
		Tasks:   s,
		Users:   memstore.Users{S: s},
		ApiKeys: memstore.ApiKeys{S: s},
		Close:   func() error { return nil },
	}
}

// openRedis connects to the Redis instance backing the queue (C2) and
// cron registry (C3).
func openRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("REDIS_URL is not configured")
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// loadConfigOrExit is the common "load config, bail loudly" path shared
// by every subcommand that cannot proceed without one. It also applies
// the initial log level, so every subcommand's very first log line
// already respects LOG_LEVEL/log_level, and sets time.Local to the
// configured timezone, the zone the cron registry evaluates schedules in.
func loadConfigOrExit() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	time.Local = cfg.Location()
	config.ApplyLogLevel(cfg)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.Level})))
	return cfg
}

// startConfigWatcher wires spec.md §9's hot-reload contract into a
// long-running subcommand (serve/worker/cron): on every change to the
// config file, it reapplies only the log level and the outbound HTTP
// client's timeout, never the already-opened store/queue/cron-registry
// connections (internal/config/hotreload.go). If no config file was
// resolved there is nothing to watch, so it is a no-op returning nil.
func startConfigWatcher(httpClient *httpclient.Client) *config.Watcher {
	path := resolveConfigPath()
	if path == "" {
		return nil
	}
	w, err := config.NewWatcher(path)
	if err != nil {
		slog.Warn("config watcher: failed to start, hot-reload disabled", "error", err)
		return nil
	}
	w.OnChange(func(cfg *config.Config) {
		config.ApplyLogLevel(cfg)
		httpClient.SetTimeout(cfg.HTTPClientTimeout)
	})
	if err := w.Start(); err != nil {
		slog.Warn("config watcher: failed to start, hot-reload disabled", "error", err)
		return nil
	}
	return w
}
