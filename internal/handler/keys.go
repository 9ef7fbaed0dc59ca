package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eldersfive/mediator/internal/middleware"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
)

// Keyring resolves and lazily creates room keys.
type Keyring interface {
	Lookup(ctx context.Context, conversationID string) (string, bool, error)
	Ensure(ctx context.Context, conversationID string) (string, error)
}

// KeyHandler serves room keys to participants.
type KeyHandler struct {
	keys   Keyring
	rooms  store.RoomStore
	logger *logger.Logger
}

// NewKeyHandler creates a new key handler.
func NewKeyHandler(keys Keyring, rooms store.RoomStore, log *logger.Logger) *KeyHandler {
	return &KeyHandler{keys: keys, rooms: rooms, logger: log}
}

// Get handles GET /api/v1/conversations/{id}/key
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.room(w, r)
	if !ok {
		return
	}

	key, found, err := h.keys.Lookup(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("room key lookup failed", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load room key")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "room has no key")
		return
	}

	writeJSON(w, http.StatusOK, model.RoomKeyResponse{ConversationID: conversationID, Key: key})
}

// Ensure handles POST /api/v1/conversations/{id}/key
func (h *KeyHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.room(w, r)
	if !ok {
		return
	}

	key, err := h.keys.Ensure(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("room key ensure failed", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create room key")
		return
	}

	writeJSON(w, http.StatusOK, model.RoomKeyResponse{ConversationID: conversationID, Key: key})
}

// room validates the {id} parameter and checks the room exists.
func (h *KeyHandler) room(w http.ResponseWriter, r *http.Request) (string, bool) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}

	if _, err := h.rooms.GetConversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return "", false
		}
		h.logger.Error("failed to load conversation", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return "", false
	}
	return conversationID, true
}
