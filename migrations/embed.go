// Package migrations embebe el SQL de cada driver para golang-migrate.
package migrations

import "embed"

// PostgresFS contiene las migraciones de PostgreSQL.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// SQLiteFS contiene las migraciones de SQLite.
//
//go:embed sqlite/*.sql
var SQLiteFS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
