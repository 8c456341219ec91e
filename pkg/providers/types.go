package providers

import "time"

// Message represents a single message in a conversation. Ordering
// within a request is significant; roles may repeat.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// TokenUsage is the accounting record for a completed request. It is
// produced at most once per request, always after all content.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is prompt + completion
	TotalTokens int `json:"total_tokens"`
}

// CompletionRequest is the provider-agnostic completion request.
type CompletionRequest struct {
	// Model is the model identifier
	Model string `json:"model"`

	// Messages is the conversation history in order
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// Stream requests incremental delivery
	Stream bool `json:"stream,omitempty"`
}

// CompletionResponse is the provider-agnostic completion response.
type CompletionResponse struct {
	// ID is the upstream response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text
	Content string `json:"content"`

	// FinishReason indicates why generation stopped
	FinishReason string `json:"finish_reason"`

	// Usage contains token accounting
	Usage TokenUsage `json:"usage"`

	// Created is the Unix timestamp of the response
	Created int64 `json:"created"`
}

// StreamChunk is a single increment of a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final content chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is set on the final chunk only, after all content
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set if the stream failed after it was opened
	Error error `json:"-"`
}

// Config contains the configuration an adapter needs to reach its
// upstream. Injected once at startup; the adapter never reads globals.
type Config struct {
	// Name is the provider identifier (e.g. "openai")
	Name string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key
	APIKey string

	// Timeout bounds buffered requests end to end and the dial/header
	// phase of streaming requests
	Timeout time.Duration

	// MaxIdleConns is the connection pool size
	MaxIdleConns int

	// IdleConnTimeout is how long idle connections are kept
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)
