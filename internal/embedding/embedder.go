// Package embedding turns text into vectors for similarity search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/pkg/logger"
)

var (
	// ErrModelNotReady is returned when Generate is called before Init succeeded.
	ErrModelNotReady = errors.New("embedding model not ready")
	// ErrEmptyInput is returned for blank text.
	ErrEmptyInput = errors.New("embedding input is empty")
)

// Embedder generates embedding vectors.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	Ready() bool
}

// Config configures an OpenAI-compatible embeddings endpoint.
type Config struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible server, e.g. a local Ollama.
	BaseURL string
	Model   string
}

// OpenAIEmbedder calls the /embeddings endpoint of an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	ready  atomic.Bool
	logger *logger.Logger
}

// NewOpenAIEmbedder creates an embedder. It reports not ready until Init succeeds.
func NewOpenAIEmbedder(cfg Config, log *logger.Logger) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(model),
		logger: log,
	}
}

// Init probes the endpoint once and marks the embedder ready on success.
func (e *OpenAIEmbedder) Init(ctx context.Context) error {
	if _, err := e.embed(ctx, "warmup"); err != nil {
		return fmt.Errorf("embedding warmup: %w", err)
	}
	e.ready.Store(true)
	e.logger.Info("embedding model ready", zap.String("model", string(e.model)))
	return nil
}

// InitWithRetry keeps calling Init until it succeeds or ctx is cancelled.
func (e *OpenAIEmbedder) InitWithRetry(ctx context.Context, interval time.Duration) {
	for {
		err := e.Init(ctx)
		if err == nil {
			return
		}
		e.logger.Warn("embedding model not ready, retrying", zap.Error(err), zap.Duration("retry_in", interval))

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Ready reports whether Init has succeeded.
func (e *OpenAIEmbedder) Ready() bool {
	return e.ready.Load()
}

// Generate returns the embedding of text.
func (e *OpenAIEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	if !e.Ready() {
		return nil, ErrModelNotReady
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	return e.embed(ctx, text)
}

func (e *OpenAIEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("create embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}
