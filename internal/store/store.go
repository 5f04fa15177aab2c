// Package store elige el backend según la config y corre las migraciones.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/caixa/internal/config"
	"github.com/dropDatabas3/caixa/internal/domain/repository"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
	"github.com/dropDatabas3/caixa/internal/store/pg"
	"github.com/dropDatabas3/caixa/internal/store/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open abre el store configurado. Si storage.migrate está activo, aplica las migraciones.
func Open(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var (
		st  repository.Store
		err error
	)
	switch cfg.Storage.Driver {
	case DriverPostgres:
		st, err = pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime(),
		})
	case DriverSQLite:
		st, err = sqlite.Open(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("store: driver %q no soportado", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Storage.Driver, err)
	}

	if cfg.Storage.Migrate {
		if _, err := Migrate(st, cfg.Storage.DSN); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return st, nil
}

// Migrate aplica las migraciones pendientes del backend y devuelve la versión.
func Migrate(st repository.Store, dsn string) (uint, error) {
	var (
		v   uint
		err error
	)
	switch s := st.(type) {
	case *sqlite.DB:
		v, err = s.Migrate()
	case *pg.Store:
		v, err = pg.RunMigrations(dsn)
	default:
		return 0, fmt.Errorf("store: migrate: backend %T no soportado", st)
	}
	if err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	logger.L().Info("migrations applied", logger.Component("store"), logger.Int("version", int(v)))
	return v, nil
}
