package sqlite

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

func strp(s string) *string { return &s }

func newItem(id, principal string, created time.Time) *repository.InboxItem {
	return &repository.InboxItem{
		ID: id, PrincipalID: principal, SourceApp: "com.nu.production", OriginalText: "Compra aprovada",
		NotificationTimestamp: created.Add(-time.Minute), Status: repository.InboxPending,
		CreatedAt: created, UpdatedAt: created,
	}
}

func TestInboxRepo_InsertGetRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Inbox()
	ctx := context.Background()

	amount := decimal.RequireFromString("1234.567")
	pdate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	it := newItem("i-1", "user-1", t0)
	it.SourceAppName = strp("Nubank")
	it.DeviceID = strp("pixel")
	it.OriginalTitle = strp("Compra")
	it.ParsedName = strp("PADARIA")
	it.ParsedAmount = &amount
	it.ParsedDate = &pdate
	it.ParsedCardLastDigits = strp("0042")
	it.ParsedTransactionType = strp("expense")
	require.NoError(t, repo.Insert(ctx, it))

	got, err := repo.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, it.SourceApp, got.SourceApp)
	assert.Equal(t, "Nubank", *got.SourceAppName)
	assert.Equal(t, "pixel", *got.DeviceID)
	assert.Equal(t, "Compra", *got.OriginalTitle)
	assert.Equal(t, it.OriginalText, got.OriginalText)
	assert.Equal(t, it.NotificationTimestamp, got.NotificationTimestamp)
	assert.Equal(t, "PADARIA", *got.ParsedName)
	assert.True(t, amount.Equal(*got.ParsedAmount), "monto sin redondeo")
	assert.Equal(t, "1234.567", got.ParsedAmount.String())
	assert.Equal(t, pdate, *got.ParsedDate)
	assert.Equal(t, "0042", *got.ParsedCardLastDigits)
	assert.Equal(t, "expense", *got.ParsedTransactionType)
	assert.Equal(t, repository.InboxPending, got.Status)
	assert.Nil(t, got.LancamentoID)
	assert.Equal(t, t0, got.CreatedAt)

	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Insert(ctx, newItem("i-1", "user-1", t0)), repository.ErrConflict)
}

func TestInboxRepo_OptionalFieldsNull(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Inbox()
	require.NoError(t, repo.Insert(context.Background(), newItem("i-1", "u", t0)))

	got, err := repo.Get(context.Background(), "i-1")
	require.NoError(t, err)
	assert.Nil(t, got.SourceAppName)
	assert.Nil(t, got.DeviceID)
	assert.Nil(t, got.ParsedAmount)
	assert.Nil(t, got.ParsedDate)
}

func TestInboxRepo_ListPending(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Inbox()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Insert(ctx, newItem("i-"+strconv.Itoa(i), "user-1", t0.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, repo.Insert(ctx, newItem("other", "user-2", t0)))
	require.NoError(t, repo.MarkDiscarded(ctx, "i-1", "spam", t0.Add(time.Hour)))

	all, err := repo.ListPending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"i-0", "i-2", "i-3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := repo.ListPending(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestInboxRepo_TransitionsAreOneShot(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Inbox()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, newItem("i-1", "u", t0)))
	require.NoError(t, repo.Insert(ctx, newItem("i-2", "u", t0)))

	at := t0.Add(time.Hour)
	require.NoError(t, repo.MarkProcessed(ctx, "i-1", "lanc-9", at))
	got, err := repo.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, repository.InboxProcessed, got.Status)
	assert.Equal(t, "lanc-9", *got.LancamentoID)
	assert.Equal(t, at, *got.ProcessedAt)

	// terminal: no se puede volver a transicionar ni pisar timestamps
	assert.ErrorIs(t, repo.MarkProcessed(ctx, "i-1", "lanc-10", at.Add(time.Hour)), repository.ErrTerminalState)
	assert.ErrorIs(t, repo.MarkDiscarded(ctx, "i-1", "x", at.Add(time.Hour)), repository.ErrTerminalState)
	got, err = repo.Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "lanc-9", *got.LancamentoID)
	assert.Equal(t, at, *got.ProcessedAt)
	assert.Nil(t, got.DiscardedAt)

	require.NoError(t, repo.MarkDiscarded(ctx, "i-2", "", at))
	got, err = repo.Get(ctx, "i-2")
	require.NoError(t, err)
	assert.Equal(t, repository.InboxDiscarded, got.Status)
	assert.Nil(t, got.DiscardReason)

	assert.ErrorIs(t, repo.MarkProcessed(ctx, "nope", "l", at), repository.ErrNotFound)
	assert.ErrorIs(t, repo.MarkProcessed(ctx, "i-2", "", at), repository.ErrInvalidInput)
}
