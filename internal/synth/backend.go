package synth

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/capitalize-ai/faqbot/internal/llm"
	"github.com/capitalize-ai/faqbot/pkg/metrics"
)

const (
	synthMaxTokens   = 300
	synthTemperature = 0.3
)

// SystemPrompt holds the standing instructions for every synthesis call.
const SystemPrompt = `You are a helpful customer support assistant. Answer the user's question using ONLY the FAQ information provided. Do not make up information.

Rules:
- Be concise and friendly
- If the FAQs don't fully answer the question, say what you CAN answer and suggest contacting support for the rest
- Combine information from multiple FAQs when relevant
- Use bullet points for multi-step instructions
- Keep responses under 150 words`

// LLMBackend generates answers with an llm.Client.
type LLMBackend struct {
	client llm.Client
	model  string
}

// NewLLMBackend creates a backend. An empty model selects the provider default.
func NewLLMBackend(client llm.Client, model string) *LLMBackend {
	return &LLMBackend{client: client, model: model}
}

// Generate sends the synthesis prompt as a single user turn.
func (b *LLMBackend) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.Complete(ctx, &llm.CompletionRequest{
		Model:  b.model,
		System: SystemPrompt,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: BuildPrompt(req)},
		},
		MaxTokens:   synthMaxTokens,
		Temperature: synthTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", b.client.Name(), err)
	}

	metrics.RecordLLMCall(resp.Model, float64(resp.LatencyMs)/1000, resp.TokensIn, resp.TokensOut)
	return strings.TrimSpace(resp.Content), nil
}

// BuildPrompt renders the recent history, FAQ context and question.
func BuildPrompt(req Request) string {
	var faqs strings.Builder
	for i, faq := range req.FAQs {
		if i > 0 {
			faqs.WriteString("\n\n")
		}
		fmt.Fprintf(&faqs, "FAQ %d (%d%% relevant):\nQ: %s\nA: %s",
			i+1, int(math.Round(faq.Similarity*100)), faq.Question, faq.Answer)
	}

	history := ""
	if len(req.History) > 0 {
		history = "Recent conversation:\n" + strings.Join(req.History, "\n") + "\n\n"
	}

	return history + `Relevant FAQs:
` + faqs.String() + `

User question: "` + req.Query + `"

Answer:`
}
