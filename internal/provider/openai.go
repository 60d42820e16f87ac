package provider

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/caseforge/backend/config"
)

// openaiProvider drives OpenAI through the eino ChatModel. It carries its
// own throttle because the eino client manages its transport internally.
type openaiProvider struct {
	chatModel *openai.ChatModel
	limiter   *rate.Limiter
	sem       *semaphore.Weighted
}

func newOpenAIProvider(cfg *config.Config) (*openaiProvider, error) {
	modelConfig := &openai.ChatModelConfig{
		BaseURL:   cfg.LLM.OpenAIURL,
		APIKey:    cfg.LLM.OpenAIAPIKey,
		Model:     cfg.LLM.OpenAIModel,
		MaxTokens: &cfg.LLM.MaxTokens,
	}

	chatModel, err := openai.NewChatModel(context.Background(), modelConfig)
	if err != nil {
		klog.Errorf("failed to create OpenAI chat model: %v", err)
		return nil, err
	}

	rps := cfg.LLM.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	maxCalls := cfg.LLM.MaxConcurrentCalls
	if maxCalls <= 0 {
		maxCalls = 3
	}

	return &openaiProvider{
		chatModel: chatModel,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		sem:       semaphore.NewWeighted(maxCalls),
	}, nil
}

func (p *openaiProvider) Name() string {
	return "openai"
}

func (p *openaiProvider) ChatComplete(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	messages := []*schema.Message{
		{Role: schema.User, Content: prompt},
	}
	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
