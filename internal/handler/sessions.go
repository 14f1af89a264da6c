package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/faqbot/internal/conversation"
	"github.com/capitalize-ai/faqbot/internal/middleware"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	store  conversation.Store
	logger *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store conversation.Store, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		logger: log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := h.store.CreateSession(r.Context())
	writeJSON(w, http.StatusCreated, model.CreateSessionResponse{SessionID: id})
}

// Messages handles GET /api/v1/sessions/{id}/messages
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, ok := h.store.GetSession(r.Context(), sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, model.ListMessagesResponse{
		SessionID: sess.ID,
		Messages:  sess.Messages,
	})
}
