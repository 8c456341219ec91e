package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe-hq/hermes/pkg/providers"
)

func newTestProvider(t *testing.T, upstream http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	return NewProvider(providers.Config{
		Name:    "openai",
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Timeout: 10 * time.Second,
	})
}

func completionRequest() *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:       "gpt-4o",
		Messages:    []providers.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   100,
	}
}

// sseChunk formats one data line of an SSE stream.
func sseChunk(delta string) string {
	return fmt.Sprintf("data: {\"id\":\"c1\",\"model\":\"gpt-4o\",\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
}

func TestStreamCompletion(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want bearer key", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hello"))
		fmt.Fprint(w, sseChunk(" world"))
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"model\":\"gpt-4o\",\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":10,\"total_tokens\":15}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	defer provider.Close()

	chunks, err := provider.StreamCompletion(context.Background(), completionRequest())
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}

	var content strings.Builder
	var usage *providers.TokenUsage
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("chunk error = %v", chunk.Error)
		}
		content.WriteString(chunk.Delta)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	if content.String() != "Hello world" {
		t.Errorf("content = %q, want %q", content.String(), "Hello world")
	}
	if usage == nil || usage.TotalTokens != 15 {
		t.Errorf("usage = %+v, want total 15", usage)
	}
}

func TestStreamCompletionSkipsNonDataLines(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "event: message\n")
		fmt.Fprint(w, sseChunk("ok"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	defer provider.Close()

	chunks, err := provider.StreamCompletion(context.Background(), completionRequest())
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}

	var content strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("chunk error = %v", chunk.Error)
		}
		content.WriteString(chunk.Delta)
	}
	if content.String() != "ok" {
		t.Errorf("content = %q, want %q", content.String(), "ok")
	}
}

func TestStreamCompletionUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(t *testing.T, err error)
	}{
		{
			name:   "auth",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			check: func(t *testing.T, err error) {
				var authErr *providers.AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %T, want *AuthError", err)
				}
				if authErr.Code != "invalid_api_key" {
					t.Errorf("code = %q, want invalid_api_key", authErr.Code)
				}
			},
		},
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"rate_limit_exceeded"}}`,
			check: func(t *testing.T, err error) {
				var rateErr *providers.RateLimitError
				if !errors.As(err, &rateErr) {
					t.Fatalf("error = %T, want *RateLimitError", err)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `{"error":{"message":"upstream unavailable","type":"server_error"}}`,
			check: func(t *testing.T, err error) {
				var provErr *providers.ProviderError
				if !errors.As(err, &provErr) {
					t.Fatalf("error = %T, want *ProviderError", err)
				}
				if provErr.StatusCode != http.StatusBadGateway {
					t.Errorf("status = %d, want 502", provErr.StatusCode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			defer provider.Close()

			_, err := provider.StreamCompletion(context.Background(), completionRequest())
			if err == nil {
				t.Fatal("StreamCompletion() should fail for an error status")
			}
			tt.check(t, err)
		})
	}
}

func TestStreamCompletionValidation(t *testing.T) {
	provider := NewProvider(providers.Config{Name: "openai", BaseURL: "http://unused", APIKey: "sk"})
	defer provider.Close()

	tests := []struct {
		name string
		req  *providers.CompletionRequest
	}{
		{"nil request", nil},
		{"missing model", &providers.CompletionRequest{Messages: []providers.Message{{Role: "user", Content: "x"}}}},
		{"empty messages", &providers.CompletionRequest{Model: "gpt-4o"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.StreamCompletion(context.Background(), tt.req)
			var valErr *providers.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestStreamCompletionCancellation(t *testing.T) {
	started := make(chan struct{})
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("first"))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	})
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := provider.StreamCompletion(ctx, completionRequest())
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}

	<-started
	cancel()

	// The channel must close without an error chunk for caller
	// cancellation.
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Errorf("chunk error = %v, want none on cancellation", chunk.Error)
		}
	}
}

func TestSendCompletion(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "c1",
			"model": "gpt-4o",
			"choices": [{"message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`)
	})
	defer provider.Close()

	resp, err := provider.SendCompletion(context.Background(), completionRequest())
	if err != nil {
		t.Fatalf("SendCompletion() error = %v", err)
	}

	if resp.Content != "Hello there" {
		t.Errorf("content = %q, want %q", resp.Content, "Hello there")
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("total tokens = %d, want 5", resp.Usage.TotalTokens)
	}
}

func TestStreamCompletionNetworkError(t *testing.T) {
	provider := NewProvider(providers.Config{
		Name:    "openai",
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "sk-test",
		Timeout: time.Second,
	})
	defer provider.Close()

	_, err := provider.StreamCompletion(context.Background(), completionRequest())
	var netErr *providers.NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("error = %v, want *NetworkError", err)
	}
}

func TestStreamCompletionOutlivesTimeout(t *testing.T) {
	// A generation longer than the configured timeout must run to
	// completion; the timeout bounds the header phase, not the stream.
	deltas := []string{"one ", "two ", "three ", "four"}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range deltas {
			fmt.Fprint(w, sseChunk(delta))
			flusher.Flush()
			time.Sleep(120 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewProvider(providers.Config{
		Name:    "openai",
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Timeout: 200 * time.Millisecond,
	})
	defer provider.Close()

	chunks, err := provider.StreamCompletion(context.Background(), completionRequest())
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}

	var content strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("chunk error = %v, stream must not be cut by the request timeout", chunk.Error)
		}
		content.WriteString(chunk.Delta)
	}

	if content.String() != "one two three four" {
		t.Errorf("content = %q, want all deltas delivered", content.String())
	}
}
