// Package middlewares contiene los decoradores HTTP del servicio.
package middlewares

import "net/http"

// Middleware decora un http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain envuelve h con mws; el primero queda afuera.
// Chain(h, RequireToken, WithRateLimit) corre RequireToken -> WithRateLimit -> h.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
