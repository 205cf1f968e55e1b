package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tokensmith/internal/flows"
	httpx "github.com/dropDatabas3/tokensmith/internal/http"
	"github.com/dropDatabas3/tokensmith/internal/http/middlewares"
)

// AccountFlowsHandler expone los flujos autenticados de cambio de password
// y cambio de email. El cambio real recién pasa cuando el dueño de la casilla
// confirma el link: el start solo emite el token y manda el mail.
type AccountFlowsHandler struct {
	Flows *flows.Service
}

// RegisterProtected monta los starts: requieren sesión (y CSRF vía router).
func (h *AccountFlowsHandler) RegisterProtected(r chi.Router) {
	r.Post("/v1/auth/password-change/start", h.passwordChangeStart)
	r.Post("/v1/auth/email-change/start", h.emailChangeStart)
}

// RegisterPublic monta los confirms: el token firmado ES la credencial,
// el click del link llega muchas veces sin sesión.
func (h *AccountFlowsHandler) RegisterPublic(r chi.Router) {
	r.Post("/v1/auth/password-change/confirm", h.passwordChangeConfirm)
	r.Get("/v1/auth/email-change/confirm", h.emailChangeConfirm)
}

type passwordChangeIn struct {
	NewPassword string `json:"new_password"`
}

func (h *AccountFlowsHandler) passwordChangeStart(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial requerida")
		return
	}
	var in passwordChangeIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_fields", "new_password requerido")
		return
	}
	if err := h.Flows.StartPasswordChange(r.Context(), id.UserID, in.NewPassword); err != nil {
		writeFlowErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmIn struct {
	Token string `json:"token"`
}

func (h *AccountFlowsHandler) passwordChangeConfirm(w http.ResponseWriter, r *http.Request) {
	var in confirmIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "token requerido")
		return
	}
	if _, err := h.Flows.ConfirmPasswordChange(r.Context(), in.Token); err != nil {
		writeFlowErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type emailChangeIn struct {
	NewEmail string `json:"new_email"`
}

func (h *AccountFlowsHandler) emailChangeStart(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial requerida")
		return
	}
	var in emailChangeIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.NewEmail == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_fields", "new_email requerido")
		return
	}
	if err := h.Flows.StartEmailChange(r.Context(), id.UserID, in.NewEmail); err != nil {
		writeFlowErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountFlowsHandler) emailChangeConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "token requerido")
		return
	}
	userID, err := h.Flows.ConfirmEmailChange(r.Context(), token)
	if err != nil {
		writeFlowErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"changed": true, "user_id": userID})
}
