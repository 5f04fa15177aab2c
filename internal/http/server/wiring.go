// Package server arma el grafo de dependencias del servicio a partir de la config.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/caixa/internal/auth"
	"github.com/dropDatabas3/caixa/internal/config"
	"github.com/dropDatabas3/caixa/internal/domain/repository"
	"github.com/dropDatabas3/caixa/internal/http/handlers"
	"github.com/dropDatabas3/caixa/internal/http/router"
	"github.com/dropDatabas3/caixa/internal/ingest"
	jwtx "github.com/dropDatabas3/caixa/internal/jwt"
	"github.com/dropDatabas3/caixa/internal/metrics"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
	"github.com/dropDatabas3/caixa/internal/rate"
	"github.com/dropDatabas3/caixa/internal/store"
	"github.com/dropDatabas3/caixa/internal/store/pg"
	"github.com/dropDatabas3/caixa/internal/usage"
)

// App es el servicio armado: el handler HTTP y lo que hay que cerrar al apagar.
type App struct {
	Handler  http.Handler
	Store    repository.Store
	Issuer   *jwtx.Issuer
	Recorder *usage.Recorder

	redis *rdb.Client
}

// Options permite inyectar dependencias ya construidas (tests).
type Options struct {
	Store   repository.Store
	Counter rate.CounterStore
	Now     func() time.Time
}

// Build construye el App. Si opts no trae store/counter, se crean desde cfg.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.With(logger.Component("wiring"))
	app := &App{}

	singleWin, err := cfg.SingleWindow()
	if err != nil {
		return nil, err
	}
	batchWin, err := cfg.BatchWindow()
	if err != nil {
		return nil, err
	}

	ks, err := jwtx.DeriveEd25519([]byte(cfg.Signing.MasterKey))
	if err != nil {
		return nil, fmt.Errorf("signing keys: %w", err)
	}
	app.Issuer = jwtx.NewIssuer(cfg.Signing.Issuer, ks)
	app.Issuer.DefaultTTL = cfg.Signing.DefaultTTL
	if opts.Now != nil {
		app.Issuer.WithClock(opts.Now)
	}

	app.Store = opts.Store
	if app.Store == nil {
		app.Store, err = store.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	counter := opts.Counter
	if counter == nil {
		counter, err = app.buildCounter(ctx, cfg)
		if err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
	}
	if mc, ok := counter.(*rate.MemoryCounter); ok && opts.Now != nil {
		mc.WithClock(opts.Now)
	}
	limiter := rate.NewLimiter(counter, map[rate.Class]rate.Policy{
		rate.ClassSingle: {Limit: cfg.Rate.Single.Limit, Window: singleWin},
		rate.ClassBatch:  {Limit: cfg.Rate.Batch.Limit, Window: batchWin},
	})

	authn := auth.New(app.Issuer, app.Store.Credentials())
	proc := ingest.NewProcessor(app.Store.Inbox())
	if opts.Now != nil {
		authn.WithClock(opts.Now)
		proc.WithClock(opts.Now)
	}

	app.Recorder = usage.NewRecorder(app.Store.Credentials(), usage.Options{
		Workers:   cfg.Usage.Workers,
		QueueSize: cfg.Usage.QueueSize,
		Observer:  metrics.RecordUsage,
	})
	if opts.Now != nil {
		app.Recorder.WithClock(opts.Now)
	}

	mcfg := metrics.Config{}
	if p, ok := app.Store.(*pg.Store); ok {
		mcfg.PgPool = p.Pool
	}
	metricsHandler, err := metrics.Register(mcfg)
	if err != nil {
		log.Warn("metrics disabled", logger.Err(err))
	}

	app.Handler = router.New(router.Deps{
		Auth:    authn,
		Limiter: limiter,
		Usage:   app.Recorder,
		Inbox:   handlers.NewInbox(proc, cfg.Server.MaxBodyBytes, cfg.Ingest.MaxBatchItems),
		Store:   app.Store,
		Metrics: metricsHandler,
	})

	log.Info("service wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("rate_backend", cfg.Rate.Backend),
		logger.String("kid", ks.KID))
	return app, nil
}

func (a *App) buildCounter(ctx context.Context, cfg *config.Config) (rate.CounterStore, error) {
	if cfg.Rate.Backend != "redis" {
		return rate.NewMemoryCounter(), nil
	}
	a.redis = rdb.NewClient(&rdb.Options{
		Addr:     cfg.Rate.Redis.Addr,
		DB:       cfg.Rate.Redis.DB,
		Password: cfg.Rate.Redis.Password,
	})
	// Un redis caído al arrancar no impide levantar: el limiter hace fail open.
	if err := a.redis.Ping(ctx).Err(); err != nil {
		logger.L().Warn("redis ping failed", logger.Component("wiring"), logger.Err(err))
	}
	return rate.NewRedisCounter(a.redis, cfg.Rate.Redis.Prefix), nil
}

// Close vacía el recorder y cierra store y redis.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Recorder != nil {
		if err := a.Recorder.Close(ctx); err != nil && !errors.Is(err, usage.ErrClosed) {
			errs = append(errs, fmt.Errorf("usage recorder: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
