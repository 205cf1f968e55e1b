package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/tokensmith/internal/http"
	"github.com/dropDatabas3/tokensmith/internal/http/middlewares"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	"github.com/dropDatabas3/tokensmith/internal/security/csrf"
)

// CSRFHandler emite el token anti-forgery vía cookie y body JSON.
// Con sesión, el token se acuña bajo la identidad; sin sesión, bajo
// "anonymous" (y el store lo espeja bajo "global" para que sobreviva el login).
type CSRFHandler struct {
	Store      *csrf.Store
	CookieName string // Default: "csrf_token"
}

func (h *CSRFHandler) Register(r chi.Router) {
	r.Get("/v1/csrf", h.get)
}

func (h *CSRFHandler) get(w http.ResponseWriter, r *http.Request) {
	cookieName := h.CookieName
	if cookieName == "" {
		cookieName = "csrf_token"
	}

	sessionID := csrf.SessionAnonymous
	if id, ok := middlewares.GetIdentity(r.Context()); ok {
		sessionID = strconv.FormatInt(id.UserID, 10)
	}

	tok, err := h.Store.TokenFor(sessionID)
	if err != nil {
		logger.From(r.Context()).Error("csrf mint failed", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir el token")
		return
	}

	// non-HttpOnly a propósito: el frontend lo lee y lo manda en el header
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(csrf.DefaultTTL).UTC(),
	})

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"csrf_token": tok})
}
