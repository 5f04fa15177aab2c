// Package router arma el chi.Router con los endpoints del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/caixa/internal/http/errors"
	"github.com/dropDatabas3/caixa/internal/http/handlers"
	mw "github.com/dropDatabas3/caixa/internal/http/middlewares"
	"github.com/dropDatabas3/caixa/internal/metrics"
	"github.com/dropDatabas3/caixa/internal/rate"
)

// Deps son las dependencias del router.
type Deps struct {
	Auth    mw.Authenticator
	Limiter mw.RateLimiter
	Usage   mw.UsageRecorder
	Inbox   *handlers.Inbox
	Store   handlers.Pinger
	// Metrics es el handler de /metrics; nil = no se expone.
	Metrics http.Handler
}

// New devuelve el handler raíz. Las rutas de ingesta quedan también bajo /api,
// que es donde las busca el companion app.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		metrics.WithMetrics,
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", handlers.Healthz)
	r.Get("/readyz", handlers.Readyz(d.Store))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	inbox := func(r chi.Router) {
		r.Use(mw.WithNoStore(), mw.RequireToken(d.Auth))
		r.Method(http.MethodPost, "/inbox", mw.Chain(http.HandlerFunc(d.Inbox.Single),
			mw.WithRateLimit(d.Limiter, rate.ClassSingle), mw.WithUsage(d.Usage)))
		r.Method(http.MethodPost, "/inbox/batch", mw.Chain(http.HandlerFunc(d.Inbox.Batch),
			mw.WithRateLimit(d.Limiter, rate.ClassBatch), mw.WithUsage(d.Usage)))
	}
	r.Group(inbox)
	r.Route("/api", func(r chi.Router) { r.Group(inbox) })

	return r
}
