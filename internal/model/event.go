package model

import (
	"time"
)

// FeedbackType classifies why an answer was or was not helpful.
type FeedbackType string

const (
	FeedbackAccurate   FeedbackType = "accurate"
	FeedbackIncomplete FeedbackType = "incomplete"
	FeedbackUnclear    FeedbackType = "unclear"
	FeedbackIrrelevant FeedbackType = "irrelevant"
	FeedbackOutdated   FeedbackType = "outdated"
)

// QueryLogEntry records one routing decision.
type QueryLogEntry struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	QueryText       string    `json:"query_text"`
	RewrittenQuery  string    `json:"rewritten_query,omitempty"`
	TopFAQID        *int64    `json:"top_faq_id,omitempty"`
	Similarity      *float64  `json:"similarity_score,omitempty"`
	Route           Route     `json:"route_decision"`
	ResponseTimeMs  int64     `json:"response_time_ms"`
	LLMUsed         bool      `json:"llm_used"`
	ContextUsed     bool      `json:"context_used"`
	MatchedCategory string    `json:"matched_faq_category,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Feedback is the user's verdict on a logged answer.
type Feedback struct {
	QueryLogID string       `json:"queryLogId" validate:"required,uuid"`
	Helpful    *bool        `json:"helpful" validate:"required"`
	Rating     *int         `json:"rating,omitempty"`
	Text       string       `json:"feedback,omitempty" validate:"max=2000"`
	Type       FeedbackType `json:"feedbackType,omitempty" validate:"omitempty,oneof=accurate incomplete unclear irrelevant outdated"`
}
