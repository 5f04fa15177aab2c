package jwt

import (
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var masterKey = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	ks, err := DeriveEd25519(masterKey)
	require.NoError(t, err)
	return NewIssuer("caixa-test", ks).WithClock(func() time.Time { return now })
}

func TestDeriveEd25519_Deterministic(t *testing.T) {
	a, err := DeriveEd25519(masterKey)
	require.NoError(t, err)
	b, err := DeriveEd25519(masterKey)
	require.NoError(t, err)
	assert.Equal(t, a.Pub, b.Pub)
	assert.Equal(t, a.KID, b.KID)
	assert.Len(t, a.KID, 16)

	other, err := DeriveEd25519([]byte(strings.Repeat("z", 32)))
	require.NoError(t, err)
	assert.NotEqual(t, a.Pub, other.Pub)

	_, err = DeriveEd25519([]byte("short"))
	require.Error(t, err)
}

func TestIssueAndParse_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)

	raw, exp, err := iss.IssueAPIToken("user-1", "tok-1", "pixel-7", 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, now.Add(24*time.Hour), *exp)

	claims, err := iss.ParseAPIToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.PrincipalID)
	assert.Equal(t, "tok-1", claims.TokenID)
	assert.Equal(t, "pixel-7", claims.DeviceID)
	assert.Equal(t, now, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, *exp, *claims.ExpiresAt)
}

func TestIssue_NoTTLMeansNoExp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)

	raw, exp, err := iss.IssueAPIToken("user-1", "tok-1", "", 0)
	require.NoError(t, err)
	assert.Nil(t, exp)

	// diez años después sigue siendo válido
	later := iss.WithClock(func() time.Time { return now.AddDate(10, 0, 0) })
	claims, err := later.ParseAPIToken(raw)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestIssue_DefaultTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)
	iss.DefaultTTL = time.Hour

	_, exp, err := iss.IssueAPIToken("user-1", "tok-1", "", -1)
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, now.Add(time.Hour), *exp)
}

func TestParse_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)
	raw, _, err := iss.IssueAPIToken("user-1", "tok-1", "", time.Minute)
	require.NoError(t, err)

	late := newTestIssuer(t, now.Add(time.Minute+leeway+time.Second))
	_, err = late.ParseAPIToken(raw)
	assert.ErrorIs(t, err, ErrExpired)

	// dentro del leeway todavía pasa
	almost := newTestIssuer(t, now.Add(time.Minute+leeway/2))
	_, err = almost.ParseAPIToken(raw)
	assert.NoError(t, err)
}

func TestParse_ForeignKeyIsSignatureInvalid(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, now)

	dev, err := NewDevEd25519()
	require.NoError(t, err)
	// mismo kid para forzar la verificación con nuestra pública
	dev.KID = iss.Keys.KID
	forger := NewIssuer("caixa-test", dev).WithClock(func() time.Time { return now })

	raw, _, err := forger.IssueAPIToken("user-1", "tok-1", "", time.Hour)
	require.NoError(t, err)

	_, err = iss.ParseAPIToken(raw)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestParse_UnknownKIDIsSignatureInvalid(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, now)

	dev, err := NewDevEd25519()
	require.NoError(t, err)
	forger := NewIssuer("caixa-test", dev).WithClock(func() time.Time { return now })
	raw, _, err := forger.IssueAPIToken("user-1", "tok-1", "", time.Hour)
	require.NoError(t, err)

	_, err = iss.ParseAPIToken(raw)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestParse_TamperedPayload(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	raw, _, err := iss.IssueAPIToken("user-1", "tok-1", "", time.Hour)
	require.NoError(t, err)

	other, _, err := iss.IssueAPIToken("user-2", "tok-2", "", time.Hour)
	require.NoError(t, err)

	// header.payload de otro token + firma del original
	a := strings.Split(raw, ".")
	b := strings.Split(other, ".")
	forged := a[0] + "." + b[1] + "." + a[2]
	_, err = iss.ParseAPIToken(forged)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestParse_Malformed(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	for _, raw := range []string{"", "abc", "a.b", "a.b.c", "not-a-jwt-at-all"} {
		_, err := iss.ParseAPIToken(raw)
		assert.ErrorIs(t, err, ErrMalformed, "raw=%q", raw)
	}
}

func TestParse_HS256Rejected(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"iss": "caixa-test", "sub": "user-1", "tid": "tok-1", "typ": "api",
	})
	raw, err := tk.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = iss.ParseAPIToken(raw)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestParse_MissingClaims(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	sign := func(c jwtv5.MapClaims) string {
		tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, c)
		tk.Header["kid"] = iss.Keys.KID
		s, err := tk.SignedString(iss.Keys.Priv)
		require.NoError(t, err)
		return s
	}

	_, err := iss.ParseAPIToken(sign(jwtv5.MapClaims{"iss": "caixa-test", "sub": "user-1", "typ": "api"}))
	assert.ErrorIs(t, err, ErrMalformed)

	// un token de otro tipo (ej: sesión) no sirve como token API
	_, err = iss.ParseAPIToken(sign(jwtv5.MapClaims{"iss": "caixa-test", "sub": "user-1", "tid": "tok-1"}))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = iss.ParseAPIToken(sign(jwtv5.MapClaims{"iss": "otro", "sub": "user-1", "tid": "tok-1", "typ": "api"}))
	assert.ErrorIs(t, err, ErrInvalidIssuer)
}
