package querylog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"gorm.io/gorm"

	"github.com/capitalize-ai/faqbot/internal/database"
	"github.com/capitalize-ai/faqbot/internal/model"
)

// GormRepository writes records to the query_logs table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// SaveQuery inserts one row.
func (r *GormRepository) SaveQuery(ctx context.Context, entry model.QueryLogEntry) error {
	return r.db.WithContext(ctx).Create(toRecord(entry)).Error
}

// SaveFeedback updates the feedback columns of an existing row.
func (r *GormRepository) SaveFeedback(ctx context.Context, feedback model.Feedback) error {
	updates := feedbackUpdates(feedback)
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&database.QueryLogRecord{}).
		Where("id = ?", feedback.QueryLogID).
		Updates(updates).Error
}

// QueryHash groups identical questions regardless of case and padding.
func QueryHash(query string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

func toRecord(entry model.QueryLogEntry) *database.QueryLogRecord {
	rec := &database.QueryLogRecord{
		ID:              entry.ID,
		SessionID:       entry.SessionID,
		QueryText:       entry.QueryText,
		QueryHash:       QueryHash(entry.QueryText),
		TopFAQID:        entry.TopFAQID,
		SimilarityScore: entry.Similarity,
		RouteDecision:   string(entry.Route),
		ResponseTimeMs:  entry.ResponseTimeMs,
		LLMUsed:         entry.LLMUsed,
		ContextUsed:     entry.ContextUsed,
		CreatedAt:       entry.CreatedAt,
	}
	if entry.RewrittenQuery != "" {
		rec.RewrittenQuery = &entry.RewrittenQuery
	}
	if entry.MatchedCategory != "" {
		rec.MatchedFAQCategory = &entry.MatchedCategory
	}
	return rec
}

// feedbackUpdates keeps a rating only when it is 1..5 and text only when it
// is not blank.
func feedbackUpdates(feedback model.Feedback) map[string]any {
	updates := map[string]any{}
	if feedback.Helpful != nil {
		updates["feedback"] = *feedback.Helpful
	}
	if feedback.Rating != nil && *feedback.Rating >= 1 && *feedback.Rating <= 5 {
		updates["rating"] = *feedback.Rating
	}
	if strings.TrimSpace(feedback.Text) != "" {
		updates["feedback_text"] = feedback.Text
	}
	if feedback.Type != "" {
		updates["feedback_type"] = string(feedback.Type)
	}
	return updates
}
