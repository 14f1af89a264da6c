package model

import (
	"time"
)

// FAQEntry is a stored question/answer pair of the FAQ corpus.
type FAQEntry struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchCandidate is an FAQ entry returned by similarity search.
// Similarity is a cosine similarity in [0,1].
type SearchCandidate struct {
	ID         int64   `json:"id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

// CreateFAQRequest is the request to add an FAQ to the corpus.
type CreateFAQRequest struct {
	Question string `json:"question" yaml:"question" validate:"required,max=500"`
	Answer   string `json:"answer" yaml:"answer" validate:"required,max=5000"`
	Category string `json:"category" yaml:"category" validate:"max=100"`
}
