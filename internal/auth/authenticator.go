// Package auth valida el bearer token de los requests del companion app.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
	jwtx "github.com/dropDatabas3/caixa/internal/jwt"
)

// Principal es la identidad resuelta de un request autorizado.
type Principal struct {
	PrincipalID string
	TokenID     string
	DeviceID    string
}

// TokenParser valida la estructura del token (firma, exp) sin tocar storage.
type TokenParser interface {
	ParseAPIToken(raw string) (*jwtx.APIClaims, error)
}

// CredentialLookup es la parte del repositorio de credenciales que usa el authenticator.
type CredentialLookup interface {
	Get(ctx context.Context, tokenID, principalID string) (*repository.Credential, error)
}

// Authenticator implementa la validación en dos fases: estructural (barata, sin I/O)
// y contra el registro de revocación.
type Authenticator struct {
	parser TokenParser
	creds  CredentialLookup
	now    func() time.Time
}

func New(parser TokenParser, creds CredentialLookup) *Authenticator {
	return &Authenticator{parser: parser, creds: creds, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// ExtractBearer quita el prefijo "Bearer " (case-insensitive) del header Authorization.
func ExtractBearer(header string) (string, bool) {
	h := strings.TrimSpace(header)
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(h[len(prefix):])
	return raw, raw != ""
}

// Validate resuelve el Principal a partir del header Authorization.
// Devuelve *Error para fallas de autenticación; cualquier otro error es una falla
// del store y no debe responderse como 401.
// No tiene efectos secundarios: el registro de uso es un paso posterior.
func (a *Authenticator) Validate(ctx context.Context, authorization string) (Principal, error) {
	raw, ok := ExtractBearer(authorization)
	if !ok {
		return Principal{}, fail(MissingToken, nil)
	}

	claims, err := a.parser.ParseAPIToken(raw)
	if err != nil {
		return Principal{}, fail(kindFor(err), err)
	}

	cred, err := a.creds.Get(ctx, claims.TokenID, claims.PrincipalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return Principal{}, fail(NotFound, err)
		}
		return Principal{}, fmt.Errorf("auth: credential lookup: %w", err)
	}
	if cred.Revoked() {
		return Principal{}, fail(Revoked, nil)
	}
	if cred.Expired(a.now()) {
		return Principal{}, fail(ExpiredToken, nil)
	}

	return Principal{
		PrincipalID: claims.PrincipalID,
		TokenID:     claims.TokenID,
		DeviceID:    claims.DeviceID,
	}, nil
}

func kindFor(err error) Kind {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return ExpiredToken
	case errors.Is(err, jwtx.ErrSignature), errors.Is(err, jwtx.ErrInvalidIssuer):
		return SignatureInvalid
	default:
		return MalformedToken
	}
}
