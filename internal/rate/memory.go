package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type window struct {
	mu      sync.Mutex
	count   int64
	resetAt time.Time
}

// MemoryCounter guarda las ventanas en memoria del proceso.
// Cada clave tiene su propio mutex: principals distintos no se bloquean entre sí.
// Varias instancias no comparten contadores; para eso está RedisCounter.
type MemoryCounter struct {
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		c:   gocache.New(2*time.Minute, 5*time.Minute),
		now: time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (m *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	m.now = now
	return m
}

func (m *MemoryCounter) Hit(_ context.Context, key string, win time.Duration) (int64, time.Time, error) {
	w := m.entry(key, win)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := m.now()
	if w.resetAt.IsZero() || !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(win)
		// renovar la expiración del janitor con la nueva ventana
		m.c.Set(key, w, 2*win)
	}
	w.count++
	return w.count, w.resetAt, nil
}

func (m *MemoryCounter) entry(key string, win time.Duration) *window {
	for {
		if v, ok := m.c.Get(key); ok {
			return v.(*window)
		}
		w := &window{}
		if err := m.c.Add(key, w, 2*win); err == nil {
			return w
		}
		// otra goroutine la creó primero: reintentar el Get
	}
}
