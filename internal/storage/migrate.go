package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means an earlier migration stopped halfway and the database
// needs manual repair before the tracker may use it.
var ErrDirtySchema = errors.New("credit state schema is dirty")

// SchemaStatus describes the database after migrating.
type SchemaStatus struct {
	Version uint
	// Applied is true when this call changed the schema.
	Applied bool
}

// RunMigrations brings the database at dbPath to the latest schema.
func RunMigrations(dbPath string) (SchemaStatus, error) {
	// The migrator closes the connection it is given.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("open migration database: %w", err)
	}
	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		return SchemaStatus{}, fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		conn.Close()
		return SchemaStatus{}, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		conn.Close()
		return SchemaStatus{}, fmt.Errorf("migrator: %w", err)
	}
	defer m.Close()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return SchemaStatus{Version: before}, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaStatus{Version: before}, fmt.Errorf("apply migrations: %w", err)
	}

	after, _, err := m.Version()
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaStatus{Version: after, Applied: after != before}, nil
}
