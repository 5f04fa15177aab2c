package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/caixa/internal/usage"
)

// UsageRecorder es lo que WithUsage necesita de usage.Recorder.
type UsageRecorder interface {
	Record(tokenID, origin string)
}

// WithUsage registra el último uso de la credencial. Va después del rate limit:
// solo cuenta requests autorizados y admitidos, sin importar el resultado de la ingesta.
// No bloquea.
func WithUsage(rec UsageRecorder) Middleware {
	if rec == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := GetPrincipal(r.Context()); ok {
				rec.Record(p.TokenID, usage.OriginFromRequest(r))
			}
			next.ServeHTTP(w, r)
		})
	}
}
