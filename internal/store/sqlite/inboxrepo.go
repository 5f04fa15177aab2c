package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

type inboxRepo struct{ db *DB }

const inboxCols = `id, principal_id, source_app, source_app_name, device_id, original_title, original_text,
notification_timestamp, parsed_name, parsed_amount, parsed_date, parsed_card_last_digits,
parsed_transaction_type, status, lancamento_id, processed_at, discarded_at, discard_reason, created_at, updated_at`

func (r *inboxRepo) Insert(ctx context.Context, it *repository.InboxItem) error {
	const q = `INSERT INTO inbox_item (id, principal_id, source_app, source_app_name, device_id, original_title,
original_text, notification_timestamp, parsed_name, parsed_amount, parsed_date, parsed_card_last_digits,
parsed_transaction_type, status, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	var amount sql.NullString
	if it.ParsedAmount != nil {
		amount = sql.NullString{String: it.ParsedAmount.String(), Valid: true}
	}
	_, err := r.db.Writer.ExecContext(ctx, q, it.ID, it.PrincipalID, it.SourceApp,
		toNullString(it.SourceAppName), toNullString(it.DeviceID), toNullString(it.OriginalTitle),
		it.OriginalText, toMicros(it.NotificationTimestamp), toNullString(it.ParsedName), amount,
		toNullMicros(it.ParsedDate), toNullString(it.ParsedCardLastDigits),
		toNullString(it.ParsedTransactionType), string(it.Status), toMicros(it.CreatedAt), toMicros(it.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert inbox item: %w", err)
	}
	return nil
}

func (r *inboxRepo) Get(ctx context.Context, id string) (*repository.InboxItem, error) {
	const q = `SELECT ` + inboxCols + ` FROM inbox_item WHERE id = ?`
	it, err := scanInbox(r.db.Reader.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inbox item: %w", err)
	}
	return it, nil
}

func (r *inboxRepo) ListPending(ctx context.Context, principalID string, limit int) ([]repository.InboxItem, error) {
	if limit <= 0 {
		limit = -1 // sin límite en sqlite
	}
	const q = `SELECT ` + inboxCols + ` FROM inbox_item WHERE principal_id = ? AND status = 'pending'
ORDER BY created_at, id LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, q, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []repository.InboxItem
	for rows.Next() {
		it, err := scanInbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbox item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *inboxRepo) MarkProcessed(ctx context.Context, id, lancamentoID string, at time.Time) error {
	if lancamentoID == "" {
		return repository.ErrInvalidInput
	}
	const q = `UPDATE inbox_item SET status = 'processed', lancamento_id = ?, processed_at = ?, updated_at = ?
WHERE id = ? AND status = 'pending'`
	ts := toMicros(at)
	res, err := r.db.Writer.ExecContext(ctx, q, lancamentoID, ts, ts, id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return r.transitionResult(ctx, id, res)
}

func (r *inboxRepo) MarkDiscarded(ctx context.Context, id, reason string, at time.Time) error {
	const q = `UPDATE inbox_item SET status = 'discarded', discard_reason = ?, discarded_at = ?, updated_at = ?
WHERE id = ? AND status = 'pending'`
	var rs sql.NullString
	if reason != "" {
		rs = sql.NullString{String: reason, Valid: true}
	}
	ts := toMicros(at)
	res, err := r.db.Writer.ExecContext(ctx, q, rs, ts, ts, id)
	if err != nil {
		return fmt.Errorf("mark discarded: %w", err)
	}
	return r.transitionResult(ctx, id, res)
}

func (r *inboxRepo) transitionResult(ctx context.Context, id string, res sql.Result) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err := r.db.Writer.QueryRowContext(ctx, `SELECT 1 FROM inbox_item WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return repository.ErrTerminalState
}

func scanInbox(row scanner) (*repository.InboxItem, error) {
	var (
		it                                                 repository.InboxItem
		srcName, dev, title, pname, amount, digits, txType sql.NullString
		lanc, reason                                       sql.NullString
		notifTS, created, updated                          int64
		pdate, processed, discarded                        sql.NullInt64
		status                                             string
	)
	if err := row.Scan(&it.ID, &it.PrincipalID, &it.SourceApp, &srcName, &dev, &title, &it.OriginalText,
		&notifTS, &pname, &amount, &pdate, &digits, &txType, &status, &lanc,
		&processed, &discarded, &reason, &created, &updated); err != nil {
		return nil, err
	}
	it.SourceAppName = fromNullString(srcName)
	it.DeviceID = fromNullString(dev)
	it.OriginalTitle = fromNullString(title)
	it.NotificationTimestamp = fromMicros(notifTS)
	it.ParsedName = fromNullString(pname)
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount.String, err)
		}
		it.ParsedAmount = &d
	}
	it.ParsedDate = fromNullMicros(pdate)
	it.ParsedCardLastDigits = fromNullString(digits)
	it.ParsedTransactionType = fromNullString(txType)
	it.Status = repository.InboxStatus(status)
	it.LancamentoID = fromNullString(lanc)
	it.ProcessedAt = fromNullMicros(processed)
	it.DiscardedAt = fromNullMicros(discarded)
	it.DiscardReason = fromNullString(reason)
	it.CreatedAt = fromMicros(created)
	it.UpdatedAt = fromMicros(updated)
	return &it, nil
}
