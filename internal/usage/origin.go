package usage

import (
	"net/http"
	"strings"
)

// Unknown es el origen cuando no hay headers de proxy.
const Unknown = "unknown"

// OriginFromRequest: primer valor de X-Forwarded-For, luego X-Real-IP, si no "unknown".
func OriginFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	return Unknown
}
