package database

import (
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/capitalize-ai/faqbot/internal/model"
)

// FAQRecord is a row of the faq table. Embedding is NULL until generated.
type FAQRecord struct {
	ID        int64            `gorm:"primaryKey;autoIncrement"`
	Question  string           `gorm:"type:text;not null"`
	Answer    string           `gorm:"type:text;not null"`
	Category  string           `gorm:"type:varchar(100);index"`
	Embedding *pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time        `gorm:"autoCreateTime"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime"`
}

func (FAQRecord) TableName() string {
	return "faq"
}

// ToModel converts the row to the domain type.
func (r *FAQRecord) ToModel() *model.FAQEntry {
	entry := &model.FAQEntry{
		ID:        r.ID,
		Question:  r.Question,
		Answer:    r.Answer,
		Category:  r.Category,
		CreatedAt: r.CreatedAt,
	}
	if r.Embedding != nil {
		entry.Embedding = r.Embedding.Slice()
	}
	return entry
}

// QueryLogRecord is a row of the query_logs table.
type QueryLogRecord struct {
	ID                 string    `gorm:"type:uuid;primaryKey"`
	SessionID          string    `gorm:"type:varchar(64);index"`
	QueryText          string    `gorm:"type:text;not null"`
	QueryHash          string    `gorm:"type:char(32);index"`
	RewrittenQuery     *string   `gorm:"type:text"`
	TopFAQID           *int64    `gorm:"column:top_faq_id"`
	SimilarityScore    *float64  `gorm:"column:similarity_score"`
	RouteDecision      string    `gorm:"type:varchar(32);index;not null"`
	ResponseTimeMs     int64     `gorm:"not null"`
	LLMUsed            bool      `gorm:"column:llm_used;not null;default:false"`
	ContextUsed        bool      `gorm:"not null;default:false"`
	MatchedFAQCategory *string   `gorm:"column:matched_faq_category;type:varchar(100)"`
	Feedback           *bool     `gorm:"column:feedback"`
	Rating             *int      `gorm:"column:rating"`
	FeedbackText       *string   `gorm:"column:feedback_text;type:text"`
	FeedbackType       *string   `gorm:"column:feedback_type;type:varchar(32)"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index"`
}

func (QueryLogRecord) TableName() string {
	return "query_logs"
}
