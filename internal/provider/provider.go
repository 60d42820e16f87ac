package provider

import (
	"context"
	"errors"
)

// ChatProvider is the chat completion capability consumed by the
// generation pipeline. Adapters exist per vendor; selection happens by
// configuration, not inheritance.
type ChatProvider interface {
	// Name identifies the vendor, recorded on generated test cases.
	Name() string
	// ChatComplete sends one prompt and returns the raw model output.
	// Callers must tolerate malformed output.
	ChatComplete(ctx context.Context, prompt string) (string, error)
}

// Embedder is the optional embedding capability. When it is not
// configured the deduplicator falls back to title-only comparison.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ErrNoProvider indicates that no usable provider is configured. This is
// the only condition allowed to abort a batch before any feature starts.
var ErrNoProvider = errors.New("no LLM provider configured")
