// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/tokensmith/internal/flows"
	"github.com/dropDatabas3/tokensmith/internal/http/handlers"
	mw "github.com/dropDatabas3/tokensmith/internal/http/middlewares"
	"github.com/dropDatabas3/tokensmith/internal/rate"
	"github.com/dropDatabas3/tokensmith/internal/security/apikey"
	"github.com/dropDatabas3/tokensmith/internal/security/csrf"
	"github.com/dropDatabas3/tokensmith/internal/security/session"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Keys     *apikey.Manager
	Flows    *flows.Service
	CSRF     *csrf.Store
	Sessions *session.Authenticator
	Limiter  rate.Limiter // opcional: rate limit por IP en endpoints públicos de email
}

// New arma el router completo. Cadena base: request-id → logging; los grupos
// agregan sesión, CSRF y rate limit según lo que cada endpoint necesita.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRequestID(), mw.WithLogging())

	// ─── Infra ───────────────────────────────────────────────────────────
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	(&handlers.ReadyzHandler{}).Register(r)

	accountFlows := &handlers.AccountFlowsHandler{Flows: deps.Flows}

	// ─── CSRF mint + flujos públicos de email ────────────────────────────
	// Sesión opcional: verify-email, forgot y los confirms funcionan sin
	// login, pero si hay cookie la identidad viaja en el contexto (resend,
	// CSRF por sesión).
	r.Group(func(r chi.Router) {
		r.Use(mw.OptionalSession(deps.Sessions))
		(&handlers.CSRFHandler{Store: deps.CSRF}).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(mw.WithCSRF(deps.CSRF, mw.CSRFConfig{}), mw.WithRateLimit(deps.Limiter))
			(&handlers.EmailFlowsHandler{Flows: deps.Flows}).Register(r)
			accountFlows.RegisterPublic(r)
		})
	})

	// ─── Operaciones privilegiadas ───────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(deps.Sessions), mw.WithCSRF(deps.CSRF, mw.CSRFConfig{}))
		(&handlers.APIKeysHandler{Keys: deps.Keys}).Register(r)
		accountFlows.RegisterProtected(r)
	})

	return r
}
