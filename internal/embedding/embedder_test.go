package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/faqbot/pkg/logger"
)

func newEmbeddingServer(t *testing.T, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"loading","type":"server_error"}}`))
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateBeforeInit(t *testing.T) {
	srv := newEmbeddingServer(t, nil)
	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, logger.NewNop())

	assert.False(t, e.Ready())
	_, err := e.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrModelNotReady)
}

func TestGenerate(t *testing.T) {
	srv := newEmbeddingServer(t, nil)
	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, e.Init(ctx))
	assert.True(t, e.Ready())

	vec, err := e.Generate(ctx, "Do you ship internationally?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	_, err = e.Generate(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestInitFailureLeavesNotReady(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := newEmbeddingServer(t, &fail)
	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, logger.NewNop())

	assert.Error(t, e.Init(context.Background()))
	assert.False(t, e.Ready())

	fail.Store(false)
	require.NoError(t, e.Init(context.Background()))
	assert.True(t, e.Ready())
}
