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
var mirrorSchema embed.FS

// migrateMirror applies pending mirror schema changes on db and returns the
// resulting schema version.
//
// The migrator is never closed: its sqlite driver would close db with it.
func migrateMirror(db *sql.DB) (uint, error) {
	src, err := iofs.New(mirrorSchema, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load mirror schema: %w", err)
	}
	defer src.Close()

	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("prepare mirror schema table: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare mirror migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("upgrade mirror schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read mirror schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("mirror schema version %d is dirty", version)
	}
	return version, nil
}
