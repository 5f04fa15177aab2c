package middlewares

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/caixa/internal/observability/logger"
	"github.com/dropDatabas3/caixa/internal/usage"
)

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return // Evitar llamadas múltiples
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// WithLogging loguea cada request e inyecta un logger "scoped" (request_id, method, path)
// en el contexto. El nivel depende del status: 5xx error, 4xx warn, resto info.
//
//	{"level":"info","msg":"request completed","request_id":"abc123","method":"POST","path":"/inbox","status":201,"bytes":87,"duration_ms":4}
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := w.Header().Get("X-Request-ID")
			if requestID == "" {
				requestID = GetRequestID(r.Context())
			}

			reqLog := logger.L().With(
				logger.RequestID(requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(usage.OriginFromRequest(r)),
				logger.UserAgent(r.UserAgent()),
			)
			// el holder permite que RequireToken agregue el principal y que el log final lo vea
			holder := &logHolder{l: reqLog}
			ctx := logger.ToContext(r.Context(), reqLog)
			ctx = withLogHolder(ctx, holder)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := []zap.Field{
				logger.Status(rec.status),
				logger.Bytes(rec.bytes),
				logger.DurationMs(time.Since(start).Milliseconds()),
			}
			l := holder.l
			switch {
			case rec.status >= 500:
				l.Error("request failed", fields...)
			case rec.status >= 400:
				l.Warn("request completed with client error", fields...)
			default:
				l.Info("request completed", fields...)
			}
		})
	}
}
