package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	migrationsDir = "sql"
	// versionTable keeps our version apart from the billing schema's own
	// migration bookkeeping in the same database.
	versionTable = "dyn_disc_schema_migrations"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Version is the schema version recorded after a migration run.
type Version struct {
	Number uint
	Dirty  bool
}

// Up applies every pending embedded migration to a postgres database and
// reports the resulting version. A dirty version from an earlier failed run
// is returned as an error and must be repaired by hand.
func Up(db *sql.DB) (Version, error) {
	m, err := newMigrator(db)
	if err != nil {
		return Version{}, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Version{}, fmt.Errorf("apply migrations: %w", err)
	}

	number, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return Version{}, nil
	case err != nil:
		return Version{}, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return Version{Number: number, Dirty: true}, fmt.Errorf("schema version %d is dirty", number)
	}
	return Version{Number: number}, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	if db == nil {
		return nil, errors.New("migration database handle is required")
	}
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: versionTable})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, "postgres", driver)
}
