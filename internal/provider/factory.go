package provider

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/caseforge/backend/config"
	"github.com/caseforge/backend/internal/pkg/llm"
)

// modelIDToProvider maps a model identifier to the vendor that serves it.
var modelIDToProvider = map[string]string{
	"gpt-4o-mini":             "openai",
	"gpt-4o":                  "openai",
	"gemini-2.5-flash":        "gemini",
	"llama-3.3-70b-versatile": "groq",
	"llama3.2:3b":             "ollama",
}

// ProviderForModelID returns the provider name serving the given model id,
// or "" when the model is unknown.
func ProviderForModelID(modelID string) string {
	return modelIDToProvider[strings.TrimSpace(modelID)]
}

// Factory constructs vendor adapters once at startup and hands them out by
// name. It is injected into the services; there is no ambient global.
type Factory struct {
	cfg      *config.Config
	embedder Embedder
}

func NewFactory(cfg *config.Config) *Factory {
	f := &Factory{cfg: cfg}
	if cfg.LLM.OpenAIAPIKey != "" {
		f.embedder = newOpenAIEmbedder(cfg)
	} else {
		klog.V(6).Infof("no OpenAI API key configured, embedding dedup disabled")
	}
	return f
}

// Get returns the adapter for the named provider, or the configured
// default when name is empty.
func (f *Factory) Get(name string) (ChatProvider, error) {
	resolved := strings.ToLower(strings.TrimSpace(name))
	if resolved == "" {
		resolved = strings.ToLower(f.cfg.LLM.DefaultProvider)
	}

	switch resolved {
	case "ollama":
		return newCompatProvider("ollama", llm.NewClient(llm.ClientOptions{
			BaseURL:            f.cfg.LLM.OllamaURL,
			Model:              f.cfg.LLM.OllamaModel,
			MaxTokens:          f.cfg.LLM.MaxTokens,
			RequestsPerSecond:  f.cfg.LLM.RequestsPerSecond,
			MaxConcurrentCalls: f.cfg.LLM.MaxConcurrentCalls,
		})), nil
	case "openai":
		if f.cfg.LLM.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key is empty", ErrNoProvider)
		}
		return newOpenAIProvider(f.cfg)
	case "gemini":
		if f.cfg.LLM.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: Gemini API key is empty", ErrNoProvider)
		}
		return newCompatProvider("gemini", llm.NewClient(llm.ClientOptions{
			BaseURL:            f.cfg.LLM.GeminiURL,
			APIKey:             f.cfg.LLM.GeminiAPIKey,
			Model:              f.cfg.LLM.GeminiModel,
			MaxTokens:          f.cfg.LLM.MaxTokens,
			RequestsPerSecond:  f.cfg.LLM.RequestsPerSecond,
			MaxConcurrentCalls: f.cfg.LLM.MaxConcurrentCalls,
		})), nil
	case "groq":
		if f.cfg.LLM.GroqAPIKey == "" {
			return nil, fmt.Errorf("%w: Groq API key is empty", ErrNoProvider)
		}
		return newCompatProvider("groq", llm.NewClient(llm.ClientOptions{
			BaseURL:            f.cfg.LLM.GroqURL,
			APIKey:             f.cfg.LLM.GroqAPIKey,
			Model:              f.cfg.LLM.GroqModel,
			MaxTokens:          f.cfg.LLM.MaxTokens,
			RequestsPerSecond:  f.cfg.LLM.RequestsPerSecond,
			MaxConcurrentCalls: f.cfg.LLM.MaxConcurrentCalls,
		})), nil
	}

	return nil, fmt.Errorf("unsupported LLM provider: %q (use ollama, openai, gemini or groq)", name)
}

// Resolve picks the provider by model id when one is given, otherwise by
// provider name, otherwise the configured default.
func (f *Factory) Resolve(providerName, modelID string) (ChatProvider, error) {
	if modelID != "" {
		if byModel := ProviderForModelID(modelID); byModel != "" {
			return f.Get(byModel)
		}
	}
	return f.Get(providerName)
}

// Embedder returns the embedding capability, or nil when it is not
// configured. A nil embedder is not an error; dedup degrades.
func (f *Factory) Embedder() Embedder {
	return f.embedder
}

// openaiEmbedder implements Embedder over the OpenAI embeddings endpoint.
type openaiEmbedder struct {
	client *llm.Client
	model  string
}

func newOpenAIEmbedder(cfg *config.Config) *openaiEmbedder {
	return &openaiEmbedder{
		client: llm.NewClient(llm.ClientOptions{
			BaseURL:            cfg.LLM.OpenAIURL,
			APIKey:             cfg.LLM.OpenAIAPIKey,
			RequestsPerSecond:  cfg.LLM.RequestsPerSecond,
			MaxConcurrentCalls: cfg.LLM.MaxConcurrentCalls,
		}),
		model: cfg.LLM.EmbeddingModel,
	}
}

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return e.client.Embed(ctx, e.model, texts)
}
