package middlewares

import (
	"errors"
	"net/http"

	httpx "github.com/dropDatabas3/tokensmith/internal/http"
	"github.com/dropDatabas3/tokensmith/internal/security/session"
)

// RequireSession valida la credencial de sesión (cookie primero, Bearer como
// fallback) y guarda la identidad en el contexto.
//
// Distingue los dos fallos que el caller tiene que diferenciar:
//   - sin credencial → 401 unauthorized
//   - credencial presente pero inválida/vencida → 403 forbidden
func RequireSession(auth *session.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r)
			if err != nil {
				if errors.Is(err, session.ErrUnauthorized) {
					httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial requerida")
					return
				}
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "credencial inválida o vencida")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalSession intenta autenticar pero NO falla si no hay credencial.
// Una credencial presente pero inválida sí corta con 403: presentar un token
// roto nunca es equivalente a no presentar nada.
func OptionalSession(auth *session.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r)
			if err != nil {
				if errors.Is(err, session.ErrUnauthorized) {
					next.ServeHTTP(w, r)
					return
				}
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "credencial inválida o vencida")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
