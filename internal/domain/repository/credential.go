package repository

import (
	"context"
	"time"
)

// Credential representa un token API (bearer) emitido para el companion app.
// El token firmado nunca se persiste; solo su prefijo para mostrarlo en pantalla.
type Credential struct {
	ID          string
	PrincipalID string
	Name        string
	Prefix      string
	DeviceID    string
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil = nunca expira
	RevokedAt   *time.Time
	LastUsedAt  *time.Time
	LastUsedIP  *string
}

// Revoked indica si la credencial fue revocada.
// Una credencial revocada nunca autentica, aunque la firma y el exp sean válidos.
func (c *Credential) Revoked() bool {
	return c != nil && c.RevokedAt != nil
}

// Expired indica si la credencial tiene vencimiento y ya pasó.
func (c *Credential) Expired(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// CredentialRepository define operaciones sobre credenciales API.
type CredentialRepository interface {
	// Create inserta una credencial nueva.
	Create(ctx context.Context, c *Credential) error

	// Get busca la credencial por (tokenID, principalID).
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, tokenID, principalID string) (*Credential, error)

	// ListByPrincipal lista las credenciales de un principal, más recientes primero.
	ListByPrincipal(ctx context.Context, principalID string) ([]Credential, error)

	// Revoke marca la credencial como revocada. Idempotente: no pisa un revoked_at previo.
	// Retorna ErrNotFound si no existe.
	Revoke(ctx context.Context, tokenID string, at time.Time) error

	// TouchUsage actualiza last_used_at/last_used_ip.
	// last_used_at nunca retrocede: si at es anterior al valor guardado, no se modifica.
	TouchUsage(ctx context.Context, tokenID string, at time.Time, ip string) error
}
