package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/caixa/internal/http/errors"
	"github.com/dropDatabas3/caixa/internal/http/helpers"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
)

// Pinger es cualquier dependencia que /readyz debe chequear.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz responde siempre 200 mientras el proceso esté vivo.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz chequea el store con un timeout corto.
func Readyz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("readyz: store ping failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrUnavailable.WithCause(err))
			return
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
