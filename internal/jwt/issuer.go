package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Claims propios de los tokens API del companion app.
const (
	claimTokenID  = "tid"
	claimDeviceID = "did"
	claimType     = "typ"
	tokenTypeAPI  = "api"
)

// Issuer firma y valida tokens API con la clave del KeySet.
type Issuer struct {
	Iss        string        // "iss"
	Keys       *KeySet       // clave de firma
	DefaultTTL time.Duration // 0 = sin exp

	now func() time.Time
}

func NewIssuer(iss string, ks *KeySet) *Issuer {
	return &Issuer{
		Iss:  iss,
		Keys: ks,
		now:  time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// APIClaims son los datos embebidos en un token API.
type APIClaims struct {
	PrincipalID string
	TokenID     string
	DeviceID    string
	IssuedAt    time.Time
	ExpiresAt   *time.Time
}

// IssueAPIToken emite un token API para (principal, token, device).
// ttl < 0 usa DefaultTTL; ttl == 0 (o DefaultTTL == 0) emite un token sin exp.
func (i *Issuer) IssueAPIToken(principalID, tokenID, deviceID string, ttl time.Duration) (string, *time.Time, error) {
	if strings.TrimSpace(principalID) == "" || strings.TrimSpace(tokenID) == "" {
		return "", nil, errors.New("jwt: principal and token id required")
	}
	if ttl < 0 {
		ttl = i.DefaultTTL
	}
	now := i.now().UTC()

	claims := jwtv5.MapClaims{
		"iss":         i.Iss,
		"sub":         principalID,
		"iat":         now.Unix(),
		claimTokenID:  tokenID,
		claimType:     tokenTypeAPI,
		claimDeviceID: deviceID,
	}
	var exp *time.Time
	if ttl > 0 {
		e := now.Add(ttl).Truncate(time.Second)
		exp = &e
		claims["exp"] = e.Unix()
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.Keys.Priv)
	if err != nil {
		return "", nil, err
	}
	return signed, exp, nil
}

// Keyfunc devuelve la pública del KeySet si el kid coincide (o si no viene kid).
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.Keys.KID {
			return nil, ErrUnknownKey
		}
		return i.Keys.Pub, nil
	}
}
