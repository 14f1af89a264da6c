package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/capitalize-ai/faqbot/internal/model"
)

// MemoryGateway holds the FAQ catalog in memory and searches it by brute
// force. It is used when no database is configured.
type MemoryGateway struct {
	mu      sync.RWMutex
	entries []model.FAQEntry
	nextID  int64
	now     func() time.Time
}

// NewMemoryGateway creates an empty in-memory catalog.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{nextID: 1, now: time.Now}
}

// SearchByVector ranks every embedded entry by cosine similarity.
func (g *MemoryGateway) SearchByVector(_ context.Context, vector []float32, threshold float64, limit int) []model.SearchCandidate {
	if len(vector) == 0 || limit <= 0 {
		return []model.SearchCandidate{}
	}

	g.mu.RLock()
	out := make([]model.SearchCandidate, 0, len(g.entries))
	for _, e := range g.entries {
		if len(e.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(vector, e.Embedding)
		if sim < threshold {
			continue
		}
		out = append(out, model.SearchCandidate{
			ID:         e.ID,
			Question:   e.Question,
			Answer:     e.Answer,
			Category:   e.Category,
			Similarity: sim,
		})
	}
	g.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SearchByKeyword returns entries whose question contains query, ignoring case.
func (g *MemoryGateway) SearchByKeyword(_ context.Context, query string, limit int) ([]model.SearchCandidate, error) {
	if limit <= 0 {
		limit = 3
	}
	needle := strings.ToLower(query)

	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []model.SearchCandidate{}
	for _, e := range g.entries {
		if !strings.Contains(strings.ToLower(e.Question), needle) {
			continue
		}
		out = append(out, model.SearchCandidate{ID: e.ID, Question: e.Question, Answer: e.Answer, Category: e.Category})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Create stores entry and assigns its id.
func (g *MemoryGateway) Create(_ context.Context, entry *model.FAQEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry.ID = g.nextID
	g.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = g.now()
	}
	stored := *entry
	stored.Embedding = append([]float32(nil), entry.Embedding...)
	g.entries = append(g.entries, stored)
	return nil
}

// Get returns the entry with id.
func (g *MemoryGateway) Get(_ context.Context, id int64) (*model.FAQEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, e := range g.entries {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// List returns all entries in id order.
func (g *MemoryGateway) List(_ context.Context) ([]model.FAQEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]model.FAQEntry, len(g.entries))
	copy(out, g.entries)
	return out, nil
}

// ListMissingEmbeddings returns entries that have no embedding yet.
func (g *MemoryGateway) ListMissingEmbeddings(_ context.Context) ([]model.FAQEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []model.FAQEntry
	for _, e := range g.entries {
		if len(e.Embedding) == 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

// UpdateEmbedding replaces the embedding of entry id.
func (g *MemoryGateway) UpdateEmbedding(_ context.Context, id int64, embedding []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.entries {
		if g.entries[i].ID == id {
			g.entries[i].Embedding = append([]float32(nil), embedding...)
			return nil
		}
	}
	return ErrNotFound
}
