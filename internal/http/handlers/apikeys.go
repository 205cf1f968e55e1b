package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/tokensmith/internal/http"
	"github.com/dropDatabas3/tokensmith/internal/http/middlewares"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	"github.com/dropDatabas3/tokensmith/internal/security/apikey"
)

// APIKeysHandler expone la rotación y borrado de API keys por slot.
// Todas las rutas requieren sesión; el CSRF gate lo pone el router.
type APIKeysHandler struct {
	Keys *apikey.Manager
}

func (h *APIKeysHandler) Register(r chi.Router) {
	r.Post("/v1/keys/{slot}/rotate", h.rotate)
	r.Post("/v1/keys/{slot}/deactivate", h.deactivate)
	r.Delete("/v1/keys/{slot}", h.delete)
}

func slotParam(r *http.Request) (apikey.Slot, bool) {
	s := apikey.Slot(chi.URLParam(r, "slot"))
	return s, s.Valid()
}

func (h *APIKeysHandler) rotate(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial requerida")
		return
	}
	slot, ok := slotParam(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slot", "slot debe ser primary o secondary")
		return
	}

	key, err := h.Keys.Rotate(r.Context(), id.UserID, slot)
	if err != nil {
		var rl *apikey.RateLimitedError
		if errors.As(err, &rl) {
			secs := int(math.Ceil(rl.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", rl.Message)
			return
		}
		logger.From(r.Context()).Error("rotate failed", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo rotar la key")
		return
	}

	// La key viaja UNA vez; después solo se puede rotar de nuevo.
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"api_key": key,
		"slot":    string(slot),
	})
}

func (h *APIKeysHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial requerida")
		return
	}
	slot, ok := slotParam(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slot", "slot debe ser primary o secondary")
		return
	}
	if err := h.Keys.Deactivate(r.Context(), id.UserID, slot); err != nil {
		logger.From(r.Context()).Error("deactivate failed", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo desactivar la key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIKeysHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial requerida")
		return
	}
	slot, ok := slotParam(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_slot", "slot debe ser primary o secondary")
		return
	}
	// Idempotente: borrar una key ausente también responde 204.
	if err := h.Keys.Delete(r.Context(), id.UserID, slot); err != nil {
		logger.From(r.Context()).Error("delete failed", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo borrar la key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
