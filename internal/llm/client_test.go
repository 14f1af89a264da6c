package llm

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("", Options{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())
	assert.Equal(t, defaultAnthropicModel, c.DefaultModel())

	c, err = NewClient(ProviderOpenAI, Options{APIKey: "key", BaseURL: "http://localhost:8080/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	_, err = NewClient("gemini", Options{APIKey: "key"})
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(ProviderAnthropic, Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ProviderOpenAI, Options{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFoldSystem(t *testing.T) {
	msgs := []ChatMessage{{Role: RoleUser, Content: "Where is my order?"}}

	out := foldSystem("Be brief.", msgs)
	require.Len(t, out, 1)
	assert.Equal(t, "Be brief.\n\nWhere is my order?", out[0].Content)
	assert.Equal(t, "Where is my order?", msgs[0].Content)

	assert.Equal(t, msgs, foldSystem("", msgs))

	out = foldSystem("Be brief.", nil)
	require.Len(t, out, 1)
	assert.Equal(t, RoleUser, out[0].Role)
}

func TestToOpenAIMessages(t *testing.T) {
	out := toOpenAIMessages("Be brief.", []ChatMessage{{Role: RoleUser, Content: "hi"}})
	require.Len(t, out, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, "hi", out[1].Content)

	assert.Len(t, toOpenAIMessages("", []ChatMessage{{Role: RoleUser, Content: "hi"}}), 1)
}

func TestDefaults(t *testing.T) {
	c := NewOpenAIClient(Options{APIKey: "key"})
	assert.Equal(t, defaultOpenAIModel, modelOrDefault(c, ""))
	assert.Equal(t, "gpt-4o", modelOrDefault(c, "gpt-4o"))
	assert.Equal(t, 512, maxTokensOrDefault(0))
	assert.Equal(t, 300, maxTokensOrDefault(300))
}
