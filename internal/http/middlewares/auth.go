package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/caixa/internal/auth"
	httperrors "github.com/dropDatabas3/caixa/internal/http/errors"
	"github.com/dropDatabas3/caixa/internal/metrics"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
)

// Authenticator es lo que RequireToken necesita de auth.Authenticator.
type Authenticator interface {
	Validate(ctx context.Context, authorization string) (auth.Principal, error)
}

// RequireToken valida el bearer token del companion app y deja el Principal en el contexto.
// Toda falla de autenticación responde 401 con un mensaje genérico; el detalle va al log.
func RequireToken(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Validate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				var ae *auth.Error
				if !errors.As(err, &ae) {
					logger.From(r.Context()).Error("credential lookup failed", logger.Err(err))
					httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
					return
				}
				metrics.RecordAuthFailure(string(ae.Kind))
				logger.From(r.Context()).Warn("authentication failed",
					logger.AuthKind(string(ae.Kind)), logger.Err(ae))

				w.Header().Set("WWW-Authenticate", `Bearer realm="caixa", error="invalid_token"`)
				if ae.Kind == auth.MissingToken {
					httperrors.WriteError(w, httperrors.ErrTokenMissing)
					return
				}
				httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithCause(ae))
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = enrichLogger(ctx, logger.PrincipalID(p.PrincipalID), logger.TokenID(p.TokenID), logger.DeviceID(p.DeviceID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
