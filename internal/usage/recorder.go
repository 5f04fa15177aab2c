// Package usage registra (best effort) el último uso de cada credencial.
package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/caixa/internal/observability/logger"
)

// UsageStore es la parte del repositorio de credenciales que toca el recorder.
type UsageStore interface {
	TouchUsage(ctx context.Context, tokenID string, at time.Time, ip string) error
}

// Observer recibe el resultado de cada registro (métricas). Puede ser nil.
type Observer func(result string)

const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
)

// ErrClosed: el recorder ya no acepta trabajo.
var ErrClosed = errors.New("usage: recorder closed")

type job struct {
	tokenID string
	origin  string
	at      time.Time
}

// Failure es un registro que no se pudo persistir.
type Failure struct {
	TokenID string
	Err     error
}

type Options struct {
	Workers   int
	QueueSize int
	// Timeout por escritura; 0 = 5s.
	Timeout  time.Duration
	Observer Observer
	Logger   *zap.Logger
}

// Recorder despacha los TouchUsage a un pool de workers desacoplado del request.
// Los errores van a un canal propio que solo se loguea: nunca afectan la respuesta.
type Recorder struct {
	store   UsageStore
	jobs    chan job
	errs    chan Failure
	timeout time.Duration
	obs     Observer
	log     *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup

	g       *errgroup.Group
	drained chan struct{}
}

func NewRecorder(store UsageStore, opts Options) *Recorder {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	r := &Recorder{
		store:   store,
		jobs:    make(chan job, opts.QueueSize),
		errs:    make(chan Failure, opts.QueueSize),
		timeout: opts.Timeout,
		obs:     opts.Observer,
		log:     opts.Logger.With(logger.Component("usage")),
		now:     time.Now,
		drained: make(chan struct{}),
	}

	r.g = &errgroup.Group{}
	for i := 0; i < opts.Workers; i++ {
		r.g.Go(r.work)
	}
	go r.drainErrors()
	return r
}

// WithClock reemplaza el reloj (tests). Llamar antes de usar el recorder.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record encola el registro sin bloquear. El timestamp se toma acá, no en el worker.
// Si la cola está llena el registro se descarta (y se loguea).
func (r *Recorder) Record(tokenID, origin string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.observe(ResultDropped)
		return
	}

	j := job{tokenID: tokenID, origin: origin, at: r.now().UTC()}
	r.pending.Add(1)
	select {
	case r.jobs <- j:
	default:
		r.pending.Done()
		r.observe(ResultDropped)
		r.log.Warn("usage queue full, dropping record", logger.TokenID(tokenID))
	}
}

func (r *Recorder) work() error {
	for j := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.store.TouchUsage(ctx, j.tokenID, j.at, j.origin)
		cancel()
		if err != nil {
			r.observe(ResultError)
			r.errs <- Failure{TokenID: j.tokenID, Err: err}
		} else {
			r.observe(ResultOK)
		}
		r.pending.Done()
	}
	return nil
}

func (r *Recorder) drainErrors() {
	defer close(r.drained)
	for f := range r.errs {
		r.log.Warn("usage record failed", logger.TokenID(f.TokenID), logger.Err(f.Err))
	}
}

// Flush espera a que se procese lo encolado hasta ahora.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close deja de aceptar registros y espera a que los workers vacíen la cola.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = r.g.Wait()
		close(r.errs)
		<-r.drained
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) observe(result string) {
	if r.obs != nil {
		r.obs(result)
	}
}
