package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfInfo separa el uso de la master key (firma de tokens API) de cualquier otro derivado.
const hkdfInfo = "caixa/api-token-signing/v1"

// KeySet mantiene la clave de firma activa. Sin rotación: cambiar la master key invalida
// todos los tokens emitidos.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// DeriveEd25519 deriva de forma determinística una clave Ed25519 desde la master key
// (HKDF-SHA256). Todas las instancias con la misma master key validan los mismos tokens.
func DeriveEd25519(masterKey []byte) (*KeySet, error) {
	if len(masterKey) < 32 {
		return nil, errors.New("jwt: master key must be at least 32 bytes")
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), seed); err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newKeySet(priv), nil
}

// NewDevEd25519 genera una clave Ed25519 aleatoria en memoria (tests / dev).
func NewDevEd25519() (*KeySet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newKeySet(priv), nil
}

func newKeySet(priv ed25519.PrivateKey) *KeySet {
	pub := priv.Public().(ed25519.PublicKey)
	return &KeySet{
		Priv: priv,
		Pub:  pub,
		KID:  kidFor(pub),
		Alg:  "EdDSA",
	}
}

// kidFor: primeros 8 bytes (hex) del SHA-256 de la pública.
func kidFor(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}
