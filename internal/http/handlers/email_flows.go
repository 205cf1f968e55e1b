package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tokensmith/internal/flows"
	httpx "github.com/dropDatabas3/tokensmith/internal/http"
	"github.com/dropDatabas3/tokensmith/internal/http/middlewares"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
)

// EmailFlowsHandler expone verificación de email y reset de password.
// Los endpoints de start son deliberadamente silenciosos sobre si el email
// existe o no: siempre 204 para no permitir enumeración de usuarios.
type EmailFlowsHandler struct {
	Flows *flows.Service
}

func (h *EmailFlowsHandler) Register(r chi.Router) {
	r.Post("/v1/auth/verify-email/start", h.verifyStart)
	r.Get("/v1/auth/verify-email", h.verifyConfirm)
	r.Post("/v1/auth/forgot", h.forgot)
	r.Post("/v1/auth/reset", h.reset)
}

// writeFlowErr traduce los errores terminales de flows a respuestas.
// Nunca filtra detalle interno.
func writeFlowErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, flows.ErrTokenExpired):
		httpx.WriteError(w, http.StatusGone, "token_expired", "el token venció, pedí uno nuevo")
	case errors.Is(err, flows.ErrTokenConsumed):
		httpx.WriteError(w, http.StatusGone, "token_consumed", "el token ya fue usado o reemplazado")
	case errors.Is(err, flows.ErrTokenInvalid):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "token inválido")
	case errors.Is(err, flows.ErrUserNotFound):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "token inválido")
	default:
		logger.From(r.Context()).Error("flow failed", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "error interno")
	}
}

type verifyStartIn struct {
	Email string `json:"email,omitempty"`
}

func (h *EmailFlowsHandler) verifyStart(w http.ResponseWriter, r *http.Request) {
	var in verifyStartIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}

	// Con sesión: re-emite para el usuario autenticado.
	// Sin sesión: flujo de resend por email (sin revelar existencia).
	if id, ok := middlewares.GetIdentity(r.Context()); ok {
		if err := h.Flows.StartEmailVerification(r.Context(), id.UserID); err != nil {
			writeFlowErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if in.Email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "login_required", "sesión o email requerido")
		return
	}
	userID, ok, err := h.Flows.Store.LookupUserIDByEmail(r.Context(), in.Email)
	if err != nil {
		writeFlowErr(w, r, err)
		return
	}
	if ok {
		if err := h.Flows.StartEmailVerification(r.Context(), userID); err != nil {
			writeFlowErr(w, r, err)
			return
		}
	}
	// Usuario inexistente → 204 igual (anti enumeración)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EmailFlowsHandler) verifyConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "token requerido")
		return
	}
	userID, err := h.Flows.ConfirmEmailVerification(r.Context(), token)
	if err != nil {
		writeFlowErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"verified": true, "user_id": userID})
}

type forgotIn struct {
	Email string `json:"email"`
}

func (h *EmailFlowsHandler) forgot(w http.ResponseWriter, r *http.Request) {
	var in forgotIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_fields", "email requerido")
		return
	}
	if _, err := h.Flows.StartPasswordReset(r.Context(), in.Email); err != nil {
		writeFlowErr(w, r, err)
		return
	}
	// found o no, la respuesta es la misma
	w.WriteHeader(http.StatusNoContent)
}

type resetIn struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *EmailFlowsHandler) reset(w http.ResponseWriter, r *http.Request) {
	var in resetIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.Token == "" || in.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_fields", "token y new_password requeridos")
		return
	}
	if _, err := h.Flows.ConfirmPasswordReset(r.Context(), in.Token, in.NewPassword); err != nil {
		writeFlowErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
