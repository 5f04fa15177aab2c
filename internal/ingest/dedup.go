package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// NaturalKey identifica una notificación "igual" a otra ya recibida.
// Hoy no se usa para rechazar nada: dos envíos idénticos generan dos filas.
type NaturalKey struct {
	PrincipalID           string
	SourceApp             string
	NotificationTimestamp int64 // unix ms
	DeviceID              string
}

// KeyFor arma la NaturalKey de un item ya normalizado.
func KeyFor(principalID string, it *Item) NaturalKey {
	k := NaturalKey{
		PrincipalID:           principalID,
		SourceApp:             it.SourceApp,
		NotificationTimestamp: it.NotificationTimestamp.UnixMilli(),
	}
	if it.DeviceID != nil {
		k.DeviceID = *it.DeviceID
	}
	return k
}

// Hash es una representación estable de la clave (para índices únicos o caches).
func (k NaturalKey) Hash() string {
	h := sha256.New()
	for _, part := range []string{k.PrincipalID, k.SourceApp, strconv.FormatInt(k.NotificationTimestamp, 10), k.DeviceID} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Deduplicator es el punto de extensión para deduplicar.
// Lookup devuelve el id ya existente para la clave, o "" si no hay.
// Remember se llama después de persistir un item nuevo.
type Deduplicator interface {
	Lookup(ctx context.Context, key NaturalKey) (string, error)
	Remember(ctx context.Context, key NaturalKey, id string) error
}
