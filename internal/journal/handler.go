package journal

import (
	"net/http"
	"strconv"

	"rebase/pkg/apperror"
	"rebase/pkg/logger"
	"rebase/pkg/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Handler struct {
	Journal Journal
}

func NewHandler(j Journal) *Handler {
	return &Handler{Journal: j}
}

// Recent serves GET /events?limit=N.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apperror.WriteJSON(w, apperror.Invalid("limit must be a positive integer"))
			return
		}
		limit = min(n, maxLimit)
	}

	events, err := h.Journal.Recent(r.Context(), limit)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to read event journal: %v", err)
		apperror.WriteJSON(w, apperror.Wrap(err, "Failed to read events"))
		return
	}
	respond.OK(w, map[string][]Event{"events": events})
}
