// Package search finds FAQ entries similar to a query embedding.
package search

import (
	"context"
	"errors"
	"math"

	"github.com/capitalize-ai/faqbot/internal/model"
)

// ErrNotFound is returned when an FAQ id does not exist.
var ErrNotFound = errors.New("faq not found")

// Gateway is the similarity search contract. Results are ordered by
// descending similarity. Backend failures yield an empty slice.
type Gateway interface {
	SearchByVector(ctx context.Context, vector []float32, threshold float64, limit int) []model.SearchCandidate
}

// KeywordSearcher finds FAQs whose question contains the query text.
type KeywordSearcher interface {
	SearchByKeyword(ctx context.Context, query string, limit int) ([]model.SearchCandidate, error)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the vectors differ in length or either has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func clamp(sim float64) float64 {
	switch {
	case sim > 1:
		return 1
	case sim < 0:
		return 0
	default:
		return sim
	}
}
