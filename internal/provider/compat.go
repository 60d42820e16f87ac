package provider

import (
	"context"

	"github.com/caseforge/backend/internal/pkg/llm"
)

// compatProvider adapts any OpenAI-compatible endpoint (Ollama, Groq,
// Gemini's compatibility surface) to the ChatProvider contract.
type compatProvider struct {
	name   string
	client *llm.Client
}

func newCompatProvider(name string, client *llm.Client) *compatProvider {
	return &compatProvider{name: name, client: client}
}

func (p *compatProvider) Name() string {
	return p.name
}

func (p *compatProvider) ChatComplete(ctx context.Context, prompt string) (string, error) {
	return p.client.Chat(ctx, []llm.ChatMessage{
		{Role: "user", Content: prompt},
	})
}
