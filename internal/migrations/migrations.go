// Package migrations runs the database schema forward with golang-migrate,
// the migration tool already in the teacher's go.mod. The SQL files are
// embedded in the binary via the library's own iofs source driver, the
// canonical golang-migrate pattern for a self-contained binary (the
// pack's retrieved teacher files declare the dependency but show no call
// site; this wires it the way golang-migrate's own documentation does,
// since no in-pack example overrides it — see DESIGN.md).
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Up applies every pending migration against the Postgres database at dsn.
// It is a no-op (migrate.ErrNoChange) if the schema is already current.
func Up(dsn string) error {
	src, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back every applied migration. Used by `reqsched migrate down`
// for local development resets only; never called from `serve`/`worker`.
func Down(dsn string) error {
	src, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}
