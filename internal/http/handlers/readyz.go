package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/tokensmith/internal/http"
)

// ReadyzHandler responde el health check básico.
type ReadyzHandler struct{}

func (h *ReadyzHandler) Register(r chi.Router) {
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
