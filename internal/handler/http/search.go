package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dev-emon1/shoppers-link/internal/search"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
	"github.com/dev-emon1/shoppers-link/pkg/httputil"
)

// SearchHandler serves debounced product search.
type SearchHandler struct {
	sessions *search.Sessions
	logger   *slog.Logger
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(sessions *search.Sessions, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{sessions: sessions, logger: logger}
}

// Search handles GET /api/v1/search?q=&category_id=&limit=
//
// Requests are debounced per session: a request overtaken by a newer one from
// the same session is answered with 204 and no body.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := search.Query{
		Text:       q.Get("q"),
		CategoryID: q.Get("category_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > 100 {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be an integer between 0 and 100"), h.logger)
			return
		}
		query.Limit = limit
	}

	o := owner(r)
	sessionID := o.SessionID
	if sessionID == "" {
		sessionID = o.ID
	}

	state, err := h.sessions.Pipeline(sessionID).Submit(r.Context(), query)
	switch {
	case errors.Is(err, search.ErrSuperseded):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		// The client went away; nobody reads the response.
		h.logger.DebugContext(r.Context(), "search abandoned", slog.String("error", err.Error()))
		return
	}
	httputil.WriteData(w, http.StatusOK, state)
}
