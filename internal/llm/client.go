// Package llm wraps the hosted chat-completion providers used for answer synthesis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrMissingAPIKey is returned when a provider is selected without credentials.
	ErrMissingAPIKey = errors.New("api key is required")
)

// Role values accepted in ChatMessage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is a single provider-neutral completion call.
type CompletionRequest struct {
	// Model overrides the provider default when set.
	Model string
	// System carries the standing instructions for the assistant.
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage is one turn sent to the provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is the provider's answer plus usage.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is implemented by every provider.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Name() string
	DefaultModel() string
}

// Provider names a hosted LLM vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Options configures a provider client.
type Options struct {
	APIKey string
	// BaseURL points the client at a proxy or compatible gateway.
	BaseURL    string
	MaxRetries int
}

// NewClient creates the client for provider. An empty provider means Anthropic.
func NewClient(provider Provider, opts Options) (Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", providerOrDefault(provider), ErrMissingAPIKey)
	}

	switch providerOrDefault(provider) {
	case ProviderAnthropic:
		return NewAnthropicClient(opts), nil
	case ProviderOpenAI:
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

func providerOrDefault(p Provider) Provider {
	if p == "" {
		return ProviderAnthropic
	}
	return p
}

func modelOrDefault(c Client, model string) string {
	if model == "" {
		return c.DefaultModel()
	}
	return model
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 512
	}
	return n
}
