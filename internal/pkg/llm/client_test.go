package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientOptions{
		BaseURL:   "https://api.example.com/v1",
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		MaxTokens: 2000,
	})

	if client.BaseURL != "https://api.example.com/v1" {
		t.Errorf("expected BaseURL https://api.example.com/v1, got %s", client.BaseURL)
	}
	if client.APIKey != "test-key" {
		t.Errorf("expected APIKey test-key, got %s", client.APIKey)
	}
	if client.limiter == nil || client.sem == nil {
		t.Fatal("expected throttling to be configured by default")
	}
}

func TestChatSendsBearerAndParsesChoice(t *testing.T) {
	var gotAuth string
	var gotReq ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: ChatMessage{Role: "assistant", Content: "hello"}}},
		})
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		BaseURL:           server.URL,
		APIKey:            "sk-test",
		Model:             "llama3.2:3b",
		MaxTokens:         100,
		RequestsPerSecond: 100,
	})

	content, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if content != "hello" {
		t.Errorf("expected content hello, got %q", content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Model != "llama3.2:3b" || gotReq.MaxTokens != 100 {
		t.Errorf("unexpected request body: %+v", gotReq)
	}
}

func TestChatNoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: ChatMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, RequestsPerSecond: 100})
	if _, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no auth header, got %q", gotAuth)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{Error: &APIError{Message: "quota exceeded"}})
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, RequestsPerSecond: 100})
	_, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Deliberately out of order.
		json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{
				{Index: 1, Embedding: []float64{0, 1}},
				{Index: 0, Embedding: []float64{1, 0}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, RequestsPerSecond: 100})
	vectors, err := client.Embed(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors not reordered by index: %v", vectors)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbeddingResponse{})
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, RequestsPerSecond: 100})
	_, err := client.Embed(context.Background(), "text-embedding-3-small", []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
