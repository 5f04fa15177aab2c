package middlewares

import (
	"context"
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/caixa/internal/http/errors"
	"github.com/dropDatabas3/caixa/internal/metrics"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
	"github.com/dropDatabas3/caixa/internal/rate"
)

// RateLimiter es lo que WithRateLimit necesita de rate.Limiter.
type RateLimiter interface {
	Allow(ctx context.Context, principalID string, class rate.Class) (rate.Decision, error)
}

// WithRateLimit aplica el límite de la clase al principal del contexto.
// Debe ir después de RequireToken. Si el backend del limiter falla, el request pasa.
func WithRateLimit(l RateLimiter, class rate.Class) Middleware {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}

			d, err := l.Allow(r.Context(), p.PrincipalID, class)
			if err != nil {
				metrics.RecordRateBackendError()
				logger.From(r.Context()).Warn("rate limiter error, allowing request", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				metrics.RecordRateLimited(string(class))
				logger.From(r.Context()).Info("rate limited",
					logger.Key(rate.Key(p.PrincipalID, class)), logger.Int("count", int(d.Count)))
				httperrors.WriteError(w, httperrors.ErrRateLimited.WithRetryAfter(d.RetryAfterSeconds()))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			}
			next.ServeHTTP(w, r)
		})
	}
}
