package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dev-emon1/shoppers-link/internal/home"
	"github.com/dev-emon1/shoppers-link/pkg/httputil"
)

// HomeHandler serves the cached home page resources.
type HomeHandler struct {
	service *home.Service
	logger  *slog.Logger
}

// NewHomeHandler creates a home handler.
func NewHomeHandler(svc *home.Service, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{service: svc, logger: logger}
}

// Snapshot handles GET /api/v1/home
func (h *HomeHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, snap)
}

// Resource handles GET /api/v1/home/{resource}
func (h *HomeHandler) Resource(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Ensure(r.Context(), chi.URLParam(r, "resource"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, entry)
}

// LoadMore handles POST /api/v1/home/{resource}/more
func (h *HomeHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.LoadMore(r.Context(), chi.URLParam(r, "resource"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, entry)
}
