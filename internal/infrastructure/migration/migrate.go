// Package migration applies the versioned Postgres schema with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Source says where the migration files come from
type Source struct {
	dir  string
	fsys fs.FS
}

// Dir reads migrations from a directory on disk
func Dir(path string) Source { return Source{dir: path} }

// Embedded reads migrations from the root of fsys, usually migrations.FS
func Embedded(fsys fs.FS) Source { return Source{fsys: fsys} }

func (s Source) String() string {
	if s.fsys != nil {
		return "embedded"
	}
	return s.dir
}

// Migrator runs schema migrations against one Postgres database
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// Status is the schema version of the database
type Status struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// New creates a Migrator over an open connection. The migrations table is
// schema_migrations.
func New(db *sql.DB, src Source, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if src.fsys != nil {
		files, ferr := iofs.New(src.fsys, ".")
		if ferr != nil {
			return nil, fmt.Errorf("failed to open embedded migrations: %w", ferr)
		}
		m, err = migrate.NewWithInstance("iofs", files, "postgres", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance("file://"+src.dir, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{migrate: m, logger: logger.With(zap.Stringer("source", src))}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back every migration
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run("steps", func() error { return m.migrate.Steps(n) }, zap.Int("steps", n))
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.run("goto", func() error { return m.migrate.Migrate(version) }, zap.Uint("target_version", version))
}

// run executes op and logs the version it left behind. No change is not an
// error.
func (m *Migrator) run(op string, fn func() error, fields ...zap.Field) error {
	m.logger.Info("Running migration", append(fields, zap.String("op", op))...)

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Schema already current", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	status, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migration completed",
		zap.String("op", op),
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty),
	)
	return nil
}

// Version returns the applied version; zero means nothing was applied yet
func (m *Migrator) Version() (Status, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// Force records version as applied without running anything. It clears a
// dirty flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every table in the database, ledger history included
func (m *Migrator) Drop() error {
	m.logger.Warn("Dropping database - all ledger data will be lost")
	if err := m.migrate.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	return nil
}

// Close releases the source and the database driver
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
