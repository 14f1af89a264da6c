package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/middleware"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/internal/querylog"
	"github.com/capitalize-ai/faqbot/internal/routing"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

const msgQueryRequired = "Query is required"

// QueryRouter answers chat queries.
type QueryRouter interface {
	ProcessQuery(ctx context.Context, sessionID, query string) (*model.RouteDecision, error)
}

// SearchHandler handles the chat search and feedback endpoints.
type SearchHandler struct {
	router   QueryRouter
	recorder querylog.Recorder
	logger   *logger.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(router QueryRouter, recorder querylog.Recorder, log *logger.Logger) *SearchHandler {
	return &SearchHandler{
		router:   router,
		recorder: recorder,
		logger:   log,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.router.ProcessQuery(ctx, req.SessionID, req.Query)
	switch {
	case errors.Is(err, routing.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return
	case errors.Is(err, routing.ErrQueryTooLong):
		writeError(w, http.StatusBadRequest, "query must be at most 500 characters")
		return
	case err != nil:
		h.logger.Error("unexpected routing error",
			zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, routing.ErrorMessage)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// Feedback handles POST /api/v1/feedback
func (h *SearchHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req model.Feedback
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.recorder.SaveFeedback(r.Context(), req)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
