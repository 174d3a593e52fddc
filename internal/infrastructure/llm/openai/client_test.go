package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/youthdesk/policy-rag/internal/core/domain"
	"github.com/youthdesk/policy-rag/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, baseURL string, executor *resilience.Executor) *Client {
	t.Helper()
	client, err := New(baseURL, "test-key", "gpt-4o-mini", "text-embedding-3-small", Options{
		Temperature: 0.2,
		MaxTokens:   500,
		Executor:    executor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("http://localhost", "", "gen", "embed", Options{})
	if err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateAnswerBuildsCitationPrompt(t *testing.T) {
	var capturedUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, m := range payload.Messages {
			if m.Role == "user" {
				capturedUser = m.Content
			}
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"답변 [1]"}}]}`))
	}))
	defer server.Close()

	gen := NewGenerator(newTestClient(t, server.URL, nil))
	answer, err := gen.GenerateAnswer(context.Background(), "월세 지원 나이 기준?", []domain.RetrievedChunk{
		{PolicyID: "R001", Title: "청년 월세 지원", Category: "주거", Text: "만 19~39세 대상", Score: 0.91},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "답변 [1]" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(capturedUser, "월세 지원 나이 기준?") || !strings.Contains(capturedUser, "만 19~39세 대상") {
		t.Fatalf("unexpected prompt: %s", capturedUser)
	}
	if !strings.Contains(capturedUser, "[1]") {
		t.Fatalf("expected reference marker in prompt: %s", capturedUser)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(newTestClient(t, server.URL, nil))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error for 502, got %v", err)
	}
}

func TestGenerateRetriesTimeoutsThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
	gen := NewGenerator(newTestClient(t, server.URL, executor))

	answer, err := gen.GenerateAnswer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if answer != "ok" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Indices deliberately out of order.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0.2]},{"index":0,"embedding":[0.1]}]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(newTestClient(t, server.URL, nil))
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 0.1 || vectors[1][0] != 0.2 {
		t.Fatalf("expected vectors sorted by index, got %v", vectors)
	}
}
