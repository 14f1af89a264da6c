package model

import (
	"fmt"
)

// Route is the response strategy chosen for a query.
type Route string

const (
	RouteDirect         Route = "direct"
	RouteLLMSynthesis   Route = "llm_synthesis"
	RouteDirectFallback Route = "direct_fallback"
	RouteFallback       Route = "fallback"
	RouteError          Route = "error"
)

// Routes lists every route in a fixed order.
var Routes = []Route{RouteDirect, RouteLLMSynthesis, RouteDirectFallback, RouteFallback, RouteError}

// ParseRoute converts a stored route string back into a Route.
func ParseRoute(s string) (Route, error) {
	switch Route(s) {
	case RouteDirect, RouteLLMSynthesis, RouteDirectFallback, RouteFallback, RouteError:
		return Route(s), nil
	default:
		return "", fmt.Errorf("unknown route %q", s)
	}
}

// AnsweredFromFAQ reports whether the answer text is a stored FAQ answer.
func (r Route) AnsweredFromFAQ() bool {
	switch r {
	case RouteDirect, RouteDirectFallback:
		return true
	case RouteLLMSynthesis, RouteFallback, RouteError:
		return false
	default:
		return false
	}
}

// AttemptedSynthesis reports whether the medium-confidence tier was entered.
func (r Route) AttemptedSynthesis() bool {
	switch r {
	case RouteLLMSynthesis, RouteDirectFallback:
		return true
	case RouteDirect, RouteFallback, RouteError:
		return false
	default:
		return false
	}
}

// TopCandidate summarizes the best match shown to the caller.
type TopCandidate struct {
	ID       int64  `json:"-"`
	Question string `json:"question"`
	Category string `json:"category"`
}

// RouteDecision is the routed answer for one query.
type RouteDecision struct {
	Route          Route         `json:"route"`
	Answer         string        `json:"answer,omitempty"`
	Message        string        `json:"message,omitempty"`
	Confidence     int           `json:"confidence"`
	Similarity     float64       `json:"-"`
	LLMUsed        bool          `json:"llmUsed"`
	ContextUsed    bool          `json:"contextUsed"`
	RewrittenQuery string        `json:"rewrittenQuery,omitempty"`
	SessionID      string        `json:"sessionId"`
	QueryLogID     string        `json:"queryLogId,omitempty"`
	TopCandidate   *TopCandidate `json:"topResult"`
	ResponseTimeMs int64         `json:"-"`
}

// SearchRequest is the chat search request body.
type SearchRequest struct {
	Query     string `json:"query" validate:"required,max=500"`
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,uuid"`
}
