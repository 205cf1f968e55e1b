package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	httpx "github.com/dropDatabas3/tokensmith/internal/http"
	"github.com/dropDatabas3/tokensmith/internal/security/csrf"
)

// CSRFConfig configura el middleware CSRF.
type CSRFConfig struct {
	HeaderName string // Default: "X-CSRF-Token"
}

// WithCSRF corta requests mutantes autenticados por cookie que no presentan
// un token anti-forgery válido.
// Comportamiento:
//   - Métodos seguros (GET, HEAD, OPTIONS, TRACE) pasan sin chequeo.
//   - Si Authorization: Bearer está presente, el check se salta (no es flujo de cookies).
//   - Sin identidad de sesión en el contexto tampoco hay chequeo: el request
//     no está cookie-autenticado.
//   - El token presentado se valida contra la cadena sessionID → anonymous → global.
//
// Debe ir después de OptionalSession/RequireSession para conocer la identidad.
func WithCSRF(store *csrf.Store, cfg CSRFConfig) Middleware {
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	isUnsafe := func(m string) bool {
		switch strings.ToUpper(m) {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			return true
		default:
			return false
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			// Skip CSRF si hay Bearer auth (no es flujo de cookies)
			if ah := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			// Sin identidad de sesión no hay cookie que forjar: los endpoints
			// anónimos se protegen por token firmado, no por CSRF.
			id, ok := GetIdentity(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			sessionID := strconv.FormatInt(id.UserID, 10)

			presented := strings.TrimSpace(r.Header.Get(headerName))
			if !store.Validate(sessionID, presented) {
				httpx.WriteError(w, http.StatusForbidden, "invalid_csrf_token", "CSRF token missing or mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
