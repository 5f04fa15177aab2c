// Package rate implementa el throttle fixed-window por (principal, endpoint).
package rate

import (
	"context"
	"fmt"
	"time"
)

// Class identifica el endpoint; cada clase tiene su propio umbral.
type Class string

const (
	ClassSingle Class = "inbox"
	ClassBatch  Class = "inbox_batch"
)

// Policy es el umbral de una clase: Limit requests por Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision es el resultado de un check.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetAt   time.Time
	// RetryAfter se reporta siempre como la ventana completa (no el resto),
	// igual que el cliente móvil espera hoy.
	RetryAfter time.Duration
}

// RetryAfterSeconds redondea RetryAfter hacia arriba.
func (d Decision) RetryAfterSeconds() int {
	s := int((d.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 && !d.Allowed {
		return 1
	}
	return s
}

// CounterStore es el contador atómico por clave.
// Hit incrementa el contador de la ventana vigente (abriendo una nueva si no hay
// o si ya venció) y devuelve el valor post-incremento y el fin de la ventana.
type CounterStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Limiter aplica las políticas por clase sobre un CounterStore.
type Limiter struct {
	store    CounterStore
	policies map[Class]Policy
}

func NewLimiter(store CounterStore, policies map[Class]Policy) *Limiter {
	p := make(map[Class]Policy, len(policies))
	for k, v := range policies {
		p[k] = v
	}
	return &Limiter{store: store, policies: p}
}

// DefaultPolicies: 100/min single, 20/min batch.
func DefaultPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassSingle: {Limit: 100, Window: time.Minute},
		ClassBatch:  {Limit: 20, Window: time.Minute},
	}
}

// Allow decide si el principal puede ejecutar un request de la clase dada.
// Un request denegado igual consume del contador, sin efecto sobre la ventana.
func (l *Limiter) Allow(ctx context.Context, principalID string, class Class) (Decision, error) {
	pol, ok := l.policies[class]
	if !ok {
		return Decision{}, fmt.Errorf("rate: unknown class %q", class)
	}
	count, resetAt, err := l.store.Hit(ctx, Key(principalID, class), pol.Window)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{
		Allowed: count <= int64(pol.Limit),
		Count:   count,
		ResetAt: resetAt,
	}
	if rem := int64(pol.Limit) - count; rem > 0 {
		d.Remaining = rem
	}
	if !d.Allowed {
		d.RetryAfter = pol.Window
	}
	return d, nil
}

// Key arma la clave de contador. El principal va tal cual: la clase no lleva ":"
// así que dos principals distintos nunca comparten clave.
func Key(principalID string, class Class) string {
	return string(class) + ":" + principalID
}
