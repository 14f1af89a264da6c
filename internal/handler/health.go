package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/capitalize-ai/faqbot/internal/conversation"
	"github.com/capitalize-ai/faqbot/internal/embedding"
)

const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	embedder embedding.Embedder
	sessions conversation.Store
	database Pinger
	events   Pinger
}

// NewHealthHandler creates a new health handler. database and events may be
// nil when those backends are not configured.
func NewHealthHandler(embedder embedding.Embedder, sessions conversation.Store, database, events Pinger) *HealthHandler {
	return &HealthHandler{
		embedder: embedder,
		sessions: sessions,
		database: database,
		events:   events,
	}
}

// HealthResponse reports component status.
type HealthResponse struct {
	Status        string            `json:"status"`
	EmbedderReady bool              `json:"embedderReady"`
	SessionStore  conversation.Mode `json:"sessionStore"`
	Database      string            `json:"database"`
	Events        string            `json:"events"`
}

// Health handles GET /health. It always answers 200; a missing component
// marks the service degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:        "ok",
		EmbedderReady: h.embedder.Ready(),
		SessionStore:  h.sessions.Mode(),
		Database:      probe(ctx, h.database),
		Events:        probe(ctx, h.events),
	}
	if !resp.EmbedderReady || resp.Database == "down" || resp.Events == "down" ||
		resp.SessionStore != conversation.ModeDurable {
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.embedder.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "embedding model not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
