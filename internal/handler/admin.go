package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/embedding"
	"github.com/capitalize-ai/faqbot/internal/faq"
	"github.com/capitalize-ai/faqbot/internal/middleware"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/internal/search"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

// Catalog manages FAQ entries.
type Catalog interface {
	Create(ctx context.Context, req model.CreateFAQRequest) (*model.FAQEntry, error)
	Reembed(ctx context.Context, id int64) error
}

// AdminHandler handles FAQ catalog administration. Routes must be mounted
// behind Auth and RequireScope(middleware.ScopeFAQAdmin).
type AdminHandler struct {
	catalog Catalog
	logger  *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(catalog Catalog, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		catalog: catalog,
		logger:  log,
	}
}

// CreateFAQ handles POST /api/v1/admin/faqs
func (h *AdminHandler) CreateFAQ(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateFAQRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.catalog.Create(ctx, req)
	if err != nil {
		h.writeCatalogError(ctx, w, "failed to create faq", err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// Reembed handles POST /api/v1/admin/faqs/{id}/reembed
func (h *AdminHandler) Reembed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid faq ID")
		return
	}

	if err := h.catalog.Reembed(ctx, id); err != nil {
		h.writeCatalogError(ctx, w, "failed to reembed faq", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "reembedded": true})
}

func (h *AdminHandler) writeCatalogError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, faq.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrNotFound):
		writeError(w, http.StatusNotFound, "faq not found")
	case errors.Is(err, embedding.ErrModelNotReady):
		writeError(w, http.StatusServiceUnavailable, "embedding model not ready")
	default:
		h.logger.Error(msg,
			zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
			zap.String("user_id", middleware.GetUserID(ctx)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
