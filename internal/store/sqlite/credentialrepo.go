package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

type credentialRepo struct{ db *DB }

const credentialCols = `id, principal_id, name, prefix, device_id, created_at, expires_at, revoked_at, last_used_at, last_used_ip`

func (r *credentialRepo) Create(ctx context.Context, c *repository.Credential) error {
	const q = `INSERT INTO api_token (` + credentialCols + `) VALUES (?,?,?,?,?,?,?,?,?,?)`
	var dev sql.NullString
	if c.DeviceID != "" {
		dev = sql.NullString{String: c.DeviceID, Valid: true}
	}
	_, err := r.db.Writer.ExecContext(ctx, q, c.ID, c.PrincipalID, c.Name, c.Prefix, dev,
		toMicros(c.CreatedAt), toNullMicros(c.ExpiresAt), toNullMicros(c.RevokedAt),
		toNullMicros(c.LastUsedAt), toNullString(c.LastUsedIP))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func (r *credentialRepo) Get(ctx context.Context, tokenID, principalID string) (*repository.Credential, error) {
	const q = `SELECT ` + credentialCols + ` FROM api_token WHERE id = ? AND principal_id = ?`
	c, err := scanCredential(r.db.Reader.QueryRowContext(ctx, q, tokenID, principalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (r *credentialRepo) ListByPrincipal(ctx context.Context, principalID string) ([]repository.Credential, error) {
	const q = `SELECT ` + credentialCols + ` FROM api_token WHERE principal_id = ? ORDER BY created_at DESC, id`
	rows, err := r.db.Reader.QueryContext(ctx, q, principalID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []repository.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *credentialRepo) Revoke(ctx context.Context, tokenID string, at time.Time) error {
	const q = `UPDATE api_token SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`
	res, err := r.db.Writer.ExecContext(ctx, q, toMicros(at), tokenID)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *credentialRepo) TouchUsage(ctx context.Context, tokenID string, at time.Time, ip string) error {
	const q = `UPDATE api_token SET last_used_at = ?, last_used_ip = ?
WHERE id = ? AND (last_used_at IS NULL OR last_used_at <= ?)`
	ts := toMicros(at)
	if _, err := r.db.Writer.ExecContext(ctx, q, ts, ip, tokenID, ts); err != nil {
		return fmt.Errorf("touch usage: %w", err)
	}
	return nil
}

func scanCredential(row scanner) (*repository.Credential, error) {
	var (
		c                          repository.Credential
		dev, ip                    sql.NullString
		created                    int64
		expires, revoked, lastUsed sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.PrincipalID, &c.Name, &c.Prefix, &dev, &created,
		&expires, &revoked, &lastUsed, &ip); err != nil {
		return nil, err
	}
	c.DeviceID = dev.String
	c.CreatedAt = fromMicros(created)
	c.ExpiresAt = fromNullMicros(expires)
	c.RevokedAt = fromNullMicros(revoked)
	c.LastUsedAt = fromNullMicros(lastUsed)
	c.LastUsedIP = fromNullString(ip)
	return &c, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
