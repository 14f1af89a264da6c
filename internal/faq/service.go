// Package faq manages the FAQ catalog: adding entries and keeping their
// embeddings current.
package faq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/embedding"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

// ErrInvalidEntry is returned when a question or answer is blank.
var ErrInvalidEntry = errors.New("question and answer are required")

// Service manages FAQ entries.
type Service struct {
	repo     Repository
	embedder embedding.Embedder
	logger   *logger.Logger
}

// NewService creates a catalog service.
func NewService(repo Repository, embedder embedding.Embedder, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		logger:   log.Named("faq"),
	}
}

// Create embeds the question and stores the entry. Only the question is
// embedded since user queries are compared against questions.
func (s *Service) Create(ctx context.Context, req model.CreateFAQRequest) (*model.FAQEntry, error) {
	question := strings.TrimSpace(req.Question)
	answer := strings.TrimSpace(req.Answer)
	if question == "" || answer == "" {
		return nil, ErrInvalidEntry
	}

	vec, err := s.embedder.Generate(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	entry := &model.FAQEntry{
		Question:  question,
		Answer:    answer,
		Category:  strings.TrimSpace(req.Category),
		Embedding: vec,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("store faq: %w", err)
	}

	s.logger.Info("faq created", zap.Int64("faq_id", entry.ID), zap.String("category", entry.Category))
	return entry, nil
}

// Reembed regenerates the embedding of one entry.
func (s *Service) Reembed(ctx context.Context, id int64) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	vec, err := s.embedder.Generate(ctx, entry.Question)
	if err != nil {
		return fmt.Errorf("embed faq %d: %w", id, err)
	}
	return s.repo.UpdateEmbedding(ctx, id, vec)
}

// ReembedMissing fills in embeddings for entries that have none and returns
// how many were updated. It stops at the first failure.
func (s *Service) ReembedMissing(ctx context.Context) (int, error) {
	entries, err := s.repo.ListMissingEmbeddings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list missing embeddings: %w", err)
	}

	for i, entry := range entries {
		vec, err := s.embedder.Generate(ctx, entry.Question)
		if err != nil {
			return i, fmt.Errorf("embed faq %d: %w", entry.ID, err)
		}
		if err := s.repo.UpdateEmbedding(ctx, entry.ID, vec); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// Seed creates every entry from a seed file, skipping questions that are
// already in the catalog.
func (s *Service) Seed(ctx context.Context, reqs []model.CreateFAQRequest) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list faqs: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[strings.ToLower(e.Question)] = true
	}

	created := 0
	for _, req := range reqs {
		key := strings.ToLower(strings.TrimSpace(req.Question))
		if seen[key] {
			continue
		}
		if _, err := s.Create(ctx, req); err != nil {
			return created, err
		}
		seen[key] = true
		created++
	}
	return created, nil
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]model.FAQEntry, error) {
	return s.repo.List(ctx)
}
