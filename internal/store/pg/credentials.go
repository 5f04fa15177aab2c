package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

type credentialRepo struct{ pool *pgxpool.Pool }

const credentialCols = `id, principal_id, name, prefix, device_id, created_at, expires_at, revoked_at, last_used_at, last_used_ip`

func (r *credentialRepo) Create(ctx context.Context, c *repository.Credential) error {
	const q = `INSERT INTO api_token (` + credentialCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	dev := nullable(c.DeviceID)
	_, err := r.pool.Exec(ctx, q, c.ID, c.PrincipalID, c.Name, c.Prefix, dev,
		c.CreatedAt, c.ExpiresAt, c.RevokedAt, c.LastUsedAt, c.LastUsedIP)
	return mapErr(err)
}

func (r *credentialRepo) Get(ctx context.Context, tokenID, principalID string) (*repository.Credential, error) {
	const q = `SELECT ` + credentialCols + ` FROM api_token WHERE id = $1 AND principal_id = $2`
	c, err := scanCredential(r.pool.QueryRow(ctx, q, tokenID, principalID))
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (r *credentialRepo) ListByPrincipal(ctx context.Context, principalID string) ([]repository.Credential, error) {
	const q = `SELECT ` + credentialCols + ` FROM api_token WHERE principal_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *credentialRepo) Revoke(ctx context.Context, tokenID string, at time.Time) error {
	const q = `UPDATE api_token SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, tokenID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *credentialRepo) TouchUsage(ctx context.Context, tokenID string, at time.Time, ip string) error {
	const q = `UPDATE api_token SET last_used_at = $2, last_used_ip = $3
WHERE id = $1 AND (last_used_at IS NULL OR last_used_at <= $2)`
	if _, err := r.pool.Exec(ctx, q, tokenID, at, ip); err != nil {
		return fmt.Errorf("touch usage: %w", err)
	}
	return nil
}

func scanCredential(row pgx.Row) (*repository.Credential, error) {
	var (
		c   repository.Credential
		dev *string
	)
	if err := row.Scan(&c.ID, &c.PrincipalID, &c.Name, &c.Prefix, &dev, &c.CreatedAt,
		&c.ExpiresAt, &c.RevokedAt, &c.LastUsedAt, &c.LastUsedIP); err != nil {
		return nil, err
	}
	if dev != nil {
		c.DeviceID = *dev
	}
	return &c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
