package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// Client is a raw HTTP client for OpenAI-compatible APIs. Outbound calls
// are throttled by a shared rate limiter and a concurrency semaphore so
// that a full batch fan-out cannot stampede a provider.
type Client struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client

	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

type ClientOptions struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxTokens          int
	RequestsPerSecond  float64
	MaxConcurrentCalls int64
}

func NewClient(opts ClientOptions) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	maxCalls := opts.MaxConcurrentCalls
	if maxCalls <= 0 {
		maxCalls = 3
	}
	return &Client{
		BaseURL:   opts.BaseURL,
		APIKey:    opts.APIKey,
		Model:     opts.Model,
		MaxTokens: opts.MaxTokens,
		Client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		sem:     semaphore.NewWeighted(maxCalls),
	}
}

// Chat sends a chat completion request and returns the first choice.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	klog.V(6).Infof("chat request: model=%s, messages=%d", c.Model, len(messages))
	resp, err := c.sendChat(ctx, ChatRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   c.MaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	klog.V(6).Infof("embedding request: model=%s, texts=%d", model, len(texts))

	var embResp EmbeddingResponse
	if err := c.post(ctx, "/embeddings", EmbeddingRequest{Model: model, Input: texts}, &embResp); err != nil {
		return nil, err
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embResp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range embResp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (c *Client) sendChat(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	var chatResp ChatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &chatResp); err != nil {
		return nil, err
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	return &chatResp, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody any, out any) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.sem.Release(1)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.BaseURL + path
	klog.V(6).Infof("sending LLM request: url=%s", url)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// acquire waits for both a rate limiter token and a concurrency slot.
func (c *Client) acquire(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire call slot: %w", err)
	}
	return nil
}
