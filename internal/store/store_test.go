package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/caixa/internal/config"
	"github.com/dropDatabas3/caixa/internal/domain/repository"
	"github.com/dropDatabas3/caixa/internal/store/pg"
)

func cfgFor(driver, dsn string) *config.Config {
	c := &config.Config{}
	c.Storage.Driver = driver
	c.Storage.DSN = dsn
	c.Storage.Migrate = true
	c.Storage.Postgres.ConnMaxLifetime = "5m"
	return c
}

func TestOpen_SQLiteFileMigratesTwice(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "caixa.db")
	ctx := context.Background()

	st, err := Open(ctx, cfgFor(DriverSQLite, dsn))
	require.NoError(t, err)
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close())

	// reabrir: las migraciones ya aplicadas no fallan
	st, err = Open(ctx, cfgFor(DriverSQLite, dsn))
	require.NoError(t, err)
	defer st.Close()

	v, err := Migrate(st, dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	_, err = st.Credentials().Get(ctx, "x", "y")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), cfgFor("mongo", "x"))
	require.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", pg.MigrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://h/db", pg.MigrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", pg.MigrateURL("pgx5://h/db"))
}

// Integración: solo con CAIXA_TEST_PG_DSN.
func TestOpen_Postgres(t *testing.T) {
	dsn := os.Getenv("CAIXA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CAIXA_TEST_PG_DSN no definido")
	}
	ctx := context.Background()
	st, err := Open(ctx, cfgFor(DriverPostgres, dsn))
	require.NoError(t, err)
	defer st.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := "it-" + now.Format("150405.000000")
	require.NoError(t, st.Credentials().Create(ctx, &repository.Credential{
		ID: id, PrincipalID: "pg-user", Prefix: "pfx", CreatedAt: now,
	}))
	require.NoError(t, st.Credentials().TouchUsage(ctx, id, now.Add(time.Second), "1.2.3.4"))
	require.NoError(t, st.Credentials().TouchUsage(ctx, id, now, "5.6.7.8"))
	c, err := st.Credentials().Get(ctx, id, "pg-user")
	require.NoError(t, err)
	assert.True(t, c.LastUsedAt.Equal(now.Add(time.Second)))

	require.NoError(t, st.Inbox().Insert(ctx, &repository.InboxItem{
		ID: id, PrincipalID: "pg-user", SourceApp: "a", OriginalText: "t",
		NotificationTimestamp: now, Status: repository.InboxPending, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, st.Inbox().MarkDiscarded(ctx, id, "teste", now))
	assert.ErrorIs(t, st.Inbox().MarkProcessed(ctx, id, "l", now), repository.ErrTerminalState)
}
