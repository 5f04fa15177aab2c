package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

type inboxRepo struct{ pool *pgxpool.Pool }

const inboxCols = `id, principal_id, source_app, source_app_name, device_id, original_title, original_text,
notification_timestamp, parsed_name, parsed_amount::text, parsed_date, parsed_card_last_digits,
parsed_transaction_type, status, lancamento_id, processed_at, discarded_at, discard_reason, created_at, updated_at`

func (r *inboxRepo) Insert(ctx context.Context, it *repository.InboxItem) error {
	const q = `INSERT INTO inbox_item (id, principal_id, source_app, source_app_name, device_id, original_title,
original_text, notification_timestamp, parsed_name, parsed_amount, parsed_date, parsed_card_last_digits,
parsed_transaction_type, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::numeric,$11,$12,$13,$14,$15,$16)`
	var amount *string
	if it.ParsedAmount != nil {
		s := it.ParsedAmount.String()
		amount = &s
	}
	_, err := r.pool.Exec(ctx, q, it.ID, it.PrincipalID, it.SourceApp, it.SourceAppName, it.DeviceID,
		it.OriginalTitle, it.OriginalText, it.NotificationTimestamp, it.ParsedName, amount, it.ParsedDate,
		it.ParsedCardLastDigits, it.ParsedTransactionType, string(it.Status), it.CreatedAt, it.UpdatedAt)
	return mapErr(err)
}

func (r *inboxRepo) Get(ctx context.Context, id string) (*repository.InboxItem, error) {
	q := `SELECT ` + inboxCols + ` FROM inbox_item WHERE id = $1`
	it, err := scanInbox(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return it, nil
}

func (r *inboxRepo) ListPending(ctx context.Context, principalID string, limit int) ([]repository.InboxItem, error) {
	q := `SELECT ` + inboxCols + ` FROM inbox_item WHERE principal_id = $1 AND status = 'pending'
ORDER BY created_at, id`
	args := []any{principalID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.InboxItem
	for rows.Next() {
		it, err := scanInbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *inboxRepo) MarkProcessed(ctx context.Context, id, lancamentoID string, at time.Time) error {
	if lancamentoID == "" {
		return repository.ErrInvalidInput
	}
	const q = `UPDATE inbox_item SET status = 'processed', lancamento_id = $2, processed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, id, lancamentoID, at)
	if err != nil {
		return err
	}
	return r.transitionResult(ctx, id, tag.RowsAffected())
}

func (r *inboxRepo) MarkDiscarded(ctx context.Context, id, reason string, at time.Time) error {
	const q = `UPDATE inbox_item SET status = 'discarded', discard_reason = $2, discarded_at = $3, updated_at = $3
WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, id, nullable(reason), at)
	if err != nil {
		return err
	}
	return r.transitionResult(ctx, id, tag.RowsAffected())
}

// transitionResult distingue "no existe" de "ya estaba terminal" cuando el update no tocó filas.
func (r *inboxRepo) transitionResult(ctx context.Context, id string, affected int64) error {
	if affected > 0 {
		return nil
	}
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM inbox_item WHERE id = $1`, id).Scan(&one)
	if err != nil {
		return mapErr(err)
	}
	return repository.ErrTerminalState
}

func scanInbox(row pgx.Row) (*repository.InboxItem, error) {
	var (
		it     repository.InboxItem
		amount *string
		status string
	)
	if err := row.Scan(&it.ID, &it.PrincipalID, &it.SourceApp, &it.SourceAppName, &it.DeviceID,
		&it.OriginalTitle, &it.OriginalText, &it.NotificationTimestamp, &it.ParsedName, &amount,
		&it.ParsedDate, &it.ParsedCardLastDigits, &it.ParsedTransactionType, &status, &it.LancamentoID,
		&it.ProcessedAt, &it.DiscardedAt, &it.DiscardReason, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.Status = repository.InboxStatus(status)
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, err
		}
		it.ParsedAmount = &d
	}
	return &it, nil
}
