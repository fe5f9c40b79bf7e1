package gateway

import (
	"encoding/json"
	"net/http"

	"rebase/pkg/apperror"
	"rebase/pkg/logger"
	"rebase/pkg/respond"
)

type Handler struct {
	Gateway *Gateway
}

func NewHandler(g *Gateway) *Handler {
	return &Handler{Gateway: g}
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		apperror.WriteJSON(w, apperror.Invalid("Invalid request body"))
		return
	}

	if err := h.Gateway.Forward(r.Context(), env); err != nil {
		if apperror.KindOf(err) == apperror.Internal {
			logger.Sugar.Errorf("Handler: Failed to forward %s: %v", env.Event, err)
		}
		apperror.WriteJSON(w, err)
		return
	}

	logger.Sugar.Debugf("Forwarded event %s", env.Event)
	respond.OK(w, successResponse{Success: true})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Gateway.ResetToTemplate(r.Context()); err != nil {
		logger.Sugar.Errorf("Handler: Failed to reset graph: %v", err)
		apperror.WriteJSON(w, err)
		return
	}
	respond.OK(w, successResponse{Success: true})
}
