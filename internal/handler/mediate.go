// Package handler implements the HTTP endpoints of the mediation service.
package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eldersfive/mediator/internal/llm"
	"github.com/eldersfive/mediator/internal/mediation"
	"github.com/eldersfive/mediator/internal/middleware"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
)

// Mediator runs one mediation call.
type Mediator interface {
	Mediate(ctx context.Context, req *model.MediateRequest) (*model.MediatorResponse, error)
}

// MediationHandler handles the mediation endpoint.
type MediationHandler struct {
	mediator Mediator
	logger   *logger.Logger
}

// NewMediationHandler creates a new mediation handler.
func NewMediationHandler(m Mediator, log *logger.Logger) *MediationHandler {
	return &MediationHandler{mediator: m, logger: log}
}

// Mediate handles POST /api/v1/mediate
func (h *MediationHandler) Mediate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))

	var req model.MediateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" || req.UserMessage == "" {
		writeError(w, http.StatusBadRequest, "conversationId and userMessage required")
		return
	}
	if err := middleware.ValidateMediateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.mediator.Mediate(ctx, &req)
	if err != nil {
		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("mediation failed",
				zap.String("conversation_id", req.ConversationID),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, model.MediateResponse{Success: true, AIResponse: resp})
}

// errorStatus maps a mediation error to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, mediation.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "conversation not found"
	}

	switch llm.KindOf(err) {
	case llm.RateLimited:
		return http.StatusTooManyRequests, "mediator is busy, try again shortly"
	case llm.Timeout:
		return http.StatusGatewayTimeout, "mediator timed out"
	case llm.ProviderUnavailable:
		return http.StatusBadGateway, "mediator unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}
