// Package migrations embeds the schema, aggregate views and predictions table for
// each supported dialect and applies them with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	dbbuilder "github.com/godilite/customer-intel/pkg/database"
)

//go:embed sql/postgres/*.sql sql/sqlite3/*.sql
var files embed.FS

// Migrator wraps a golang-migrate instance bound to an existing connection pool.
// The pool stays owned by the caller; Migrator never closes it.
type Migrator struct {
	m *migrate.Migrate
}

// New builds a Migrator for db. driver is the database/sql driver name
// (see database.DriverPostgres and database.DriverSQLite).
func New(db *sql.DB, driver string) (*Migrator, error) {
	var (
		target  database.Driver
		dialect string
		err     error
	)

	switch driver {
	case dbbuilder.DriverPostgres:
		dialect = "postgres"
		target, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case dbbuilder.DriverSQLite:
		dialect = "sqlite3"
		target, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver %s: %w", dialect, err)
	}

	source, err := iofs.New(files, "sql/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, target)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. Already being at the latest version is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down reverts all migrations.
func (mg *Migrator) Down() error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Steps applies n migrations forward (n > 0) or backward (n < 0).
func (mg *Migrator) Steps(n int) error {
	if err := mg.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate steps %d: %w", n, err)
	}
	return nil
}

// Version reports the current schema version and whether it is dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Force sets the schema version without running migrations.
func (mg *Migrator) Force(version int) error {
	return mg.m.Force(version)
}

// Up is a convenience for New followed by Migrator.Up.
func Up(db *sql.DB, driver string) error {
	mg, err := New(db, driver)
	if err != nil {
		return err
	}
	return mg.Up()
}
