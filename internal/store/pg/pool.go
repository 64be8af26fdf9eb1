package pg

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig sizes the connection pool OpenDB opens. Zero values fall back
// to defaultMaxOpenConns/defaultMaxIdleConns rather than to database/sql's
// own unbounded default, since an unbounded pool in managed mode is how a
// busy worker fleet exhausts the shared Postgres instance for every other
// tenant.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 10
)

// OpenDB opens a database/sql handle to Postgres via the pgx stdlib driver
// (internal/store/pg has no other SQL driver import — no sqlx, no lib/pq).
//
// Admission HTTP handlers, every worker goroutine, and the cron poll loop
// (spec.md §5) all reach the store concurrently from a single process, so
// the pool must stay wide enough to absorb WorkerCount-many simultaneous
// claims plus a handful of concurrent API requests without one role-set
// starving another for a connection; config.DatabaseConfig lets an
// operator widen it past the default for a larger worker fleet.
func OpenDB(dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("postgres connected", "max_open_conns", maxOpen, "max_idle_conns", maxIdle)
	return db, nil
}
