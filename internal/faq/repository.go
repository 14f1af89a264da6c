package faq

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/capitalize-ai/faqbot/internal/database"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/internal/search"
)

// Repository stores the FAQ catalog.
type Repository interface {
	Create(ctx context.Context, entry *model.FAQEntry) error
	Get(ctx context.Context, id int64) (*model.FAQEntry, error)
	List(ctx context.Context) ([]model.FAQEntry, error)
	ListMissingEmbeddings(ctx context.Context) ([]model.FAQEntry, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// GormRepository implements Repository on the faq table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, entry *model.FAQEntry) error {
	rec := &database.FAQRecord{
		Question: entry.Question,
		Answer:   entry.Answer,
		Category: entry.Category,
	}
	if len(entry.Embedding) > 0 {
		vec := pgvector.NewVector(entry.Embedding)
		rec.Embedding = &vec
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	entry.ID = rec.ID
	entry.CreatedAt = rec.CreatedAt
	return nil
}

func (r *GormRepository) Get(ctx context.Context, id int64) (*model.FAQEntry, error) {
	var rec database.FAQRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, search.ErrNotFound
		}
		return nil, err
	}
	return rec.ToModel(), nil
}

func (r *GormRepository) List(ctx context.Context) ([]model.FAQEntry, error) {
	return r.find(r.db.WithContext(ctx).Order("id"))
}

func (r *GormRepository) ListMissingEmbeddings(ctx context.Context) ([]model.FAQEntry, error) {
	return r.find(r.db.WithContext(ctx).Where("embedding IS NULL").Order("id"))
}

func (r *GormRepository) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	res := r.db.WithContext(ctx).
		Model(&database.FAQRecord{}).
		Where("id = ?", id).
		Update("embedding", pgvector.NewVector(embedding))
	if res.Error != nil {
		return fmt.Errorf("update embedding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return search.ErrNotFound
	}
	return nil
}

func (r *GormRepository) find(query *gorm.DB) ([]model.FAQEntry, error) {
	var recs []database.FAQRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.FAQEntry, len(recs))
	for i := range recs {
		out[i] = *recs[i].ToModel()
	}
	return out, nil
}
