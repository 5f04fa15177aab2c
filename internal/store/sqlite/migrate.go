package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/dropDatabas3/caixa/migrations"
)

// RunMigrations aplica las migraciones embebidas. Se puede llamar en cada arranque.
// Devuelve la versión resultante.
func RunMigrations(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrations.SQLiteFS, migrations.SQLiteDir)
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	v, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	return v, nil
}

// Migrate corre las migraciones sobre el writer.
func (db *DB) Migrate() (uint, error) { return RunMigrations(db.Writer) }
