package middlewares

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/caixa/internal/auth"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
)

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "principal"
	ctxRequestIDKey ctxKey = "request_id"
	ctxLogHolderKey ctxKey = "log_holder"
)

// logHolder es el logger del request, compartido con WithLogging para que el
// log de cierre incluya los campos agregados más adentro de la cadena.
type logHolder struct{ l *zap.Logger }

func withLogHolder(ctx context.Context, h *logHolder) context.Context {
	return context.WithValue(ctx, ctxLogHolderKey, h)
}

// enrichLogger agrega campos al logger del request (contexto y log de cierre).
func enrichLogger(ctx context.Context, fields ...zap.Field) context.Context {
	l := logger.FromWithFields(ctx, fields...)
	if h, ok := ctx.Value(ctxLogHolderKey).(*logHolder); ok {
		h.l = l
	}
	return logger.ToContext(ctx, l)
}

// WithPrincipal inyecta el principal autenticado en el contexto
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetPrincipal obtiene el principal del contexto.
// ok es false si RequireToken no se aplicó.
func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(auth.Principal)
	return p, ok
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}
