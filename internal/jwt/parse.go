package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Errores de parseo. Todos ocurren antes de cualquier acceso a storage.
var (
	ErrMalformed     = errors.New("jwt: malformed token")
	ErrExpired       = errors.New("jwt: token expired")
	ErrSignature     = errors.New("jwt: signature invalid")
	ErrInvalidIssuer = errors.New("jwt: invalid issuer")
	ErrUnknownKey    = errors.New("jwt: unknown kid")
)

// leeway tolera pequeñas diferencias de reloj con el dispositivo.
const leeway = 30 * time.Second

// ParseAPIToken valida firma (EdDSA), iss y exp/nbf, y devuelve los claims tipados.
// Los errores se normalizan a ErrMalformed / ErrExpired / ErrSignature / ErrInvalidIssuer.
func (i *Issuer) ParseAPIToken(raw string) (*APIClaims, error) {
	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(leeway),
		jwtv5.WithIssuedAt(),
		jwtv5.WithTimeFunc(i.now),
	)

	claims := jwtv5.MapClaims{}
	tok, err := parser.ParseWithClaims(raw, claims, i.Keyfunc())
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid {
		return nil, ErrSignature
	}

	// iss check (después de la firma: un iss ajeno con firma válida no debería existir)
	if iss, _ := claims["iss"].(string); i.Iss != "" && iss != i.Iss {
		return nil, ErrInvalidIssuer
	}
	if typ, _ := claims[claimType].(string); typ != tokenTypeAPI {
		return nil, ErrMalformed
	}

	out := &APIClaims{}
	out.PrincipalID, _ = claims["sub"].(string)
	out.TokenID, _ = claims[claimTokenID].(string)
	out.DeviceID, _ = claims[claimDeviceID].(string)
	if out.PrincipalID == "" || out.TokenID == "" {
		return nil, ErrMalformed
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		e := exp.Time.UTC()
		out.ExpiresAt = &e
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid),
		errors.Is(err, jwtv5.ErrTokenUnverifiable):
		return ErrSignature
	case errors.Is(err, jwtv5.ErrTokenExpired),
		errors.Is(err, jwtv5.ErrTokenNotValidYet),
		errors.Is(err, jwtv5.ErrTokenUsedBeforeIssued):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
