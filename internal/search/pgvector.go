package search

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/capitalize-ai/faqbot/internal/database"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

// PGVectorGateway searches the faq table with pgvector cosine distance.
type PGVectorGateway struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewPGVectorGateway creates a Postgres-backed gateway.
func NewPGVectorGateway(db *gorm.DB, log *logger.Logger) *PGVectorGateway {
	return &PGVectorGateway{db: db, logger: log}
}

type candidateRow struct {
	ID         int64
	Question   string
	Answer     string
	Category   string
	Similarity float64
}

// SearchByVector returns up to limit entries with similarity >= threshold.
func (g *PGVectorGateway) SearchByVector(ctx context.Context, vector []float32, threshold float64, limit int) []model.SearchCandidate {
	if len(vector) == 0 || limit <= 0 {
		return []model.SearchCandidate{}
	}

	// pgvector's <=> is cosine distance; similarity = 1 - distance.
	query := pgvector.NewVector(vector)
	var rows []candidateRow
	err := g.db.WithContext(ctx).
		Model(&database.FAQRecord{}).
		Select("id, question, answer, category, 1 - (embedding <=> ?) AS similarity", query).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) >= ?", query, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		g.logger.Error("vector search failed", zap.Error(err))
		return []model.SearchCandidate{}
	}

	out := make([]model.SearchCandidate, len(rows))
	for i, r := range rows {
		out[i] = model.SearchCandidate{
			ID:         r.ID,
			Question:   r.Question,
			Answer:     r.Answer,
			Category:   r.Category,
			Similarity: clamp(r.Similarity),
		}
	}
	return out
}

// SearchByKeyword matches the question column case-insensitively.
func (g *PGVectorGateway) SearchByKeyword(ctx context.Context, query string, limit int) ([]model.SearchCandidate, error) {
	if limit <= 0 {
		limit = 3
	}

	var rows []candidateRow
	err := g.db.WithContext(ctx).
		Model(&database.FAQRecord{}).
		Select("id, question, answer, category").
		Where("question ILIKE ?", "%"+escapeLike(query)+"%").
		Order("id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.SearchCandidate, len(rows))
	for i, r := range rows {
		out[i] = model.SearchCandidate{ID: r.ID, Question: r.Question, Answer: r.Answer, Category: r.Category}
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in user input literal.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
