package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies pending schema migrations for the store's dialect.
// It reports whether anything changed.
func (s *Store) Migrate() (bool, error) {
	src, err := iofs.New(migrations, "migrations/"+s.driver)
	if err != nil {
		return false, fmt.Errorf("open migrations: %w", err)
	}

	var driver database.Driver
	switch s.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(s.db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(s.db.DB, &sqlite3.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", s.driver)
	}
	if err != nil {
		_ = src.Close()
		return false, fmt.Errorf("create migrate driver: %w", err)
	}

	// The migrate instance is not closed: that would close the shared pool.
	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		_ = src.Close()
		return false, fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("run migrations: %w", err)
	}
	return true, nil
}
