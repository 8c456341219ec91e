package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"scribe-hq/hermes/pkg/providers"
)

// Client is the OpenAI-compatible provider adapter.
type Client struct {
	*providers.HTTPClient
}

// NewProvider creates an OpenAI-compatible adapter from the given
// configuration.
func NewProvider(config providers.Config) *Client {
	return &Client{
		HTTPClient: providers.NewHTTPClient(config),
	}
}

// completionsURL joins the configured base URL with the chat
// completions path.
func (c *Client) completionsURL() string {
	return strings.TrimRight(c.Config().BaseURL, "/") + "/chat/completions"
}

// headers returns the authentication headers for the upstream.
func (c *Client) headers(accept string) map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + c.Config().APIKey,
		"Content-Type":  "application/json",
	}
	if accept != "" {
		h["Accept"] = accept
	}
	return h
}

// validate rejects malformed requests before any upstream contact.
func validate(req *providers.CompletionRequest) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request is nil"}
	}
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "messages must contain at least one message"}
	}
	return nil
}

// SendCompletion sends a non-streaming completion request.
func (c *Client) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	openaiReq := transformRequest(req)
	openaiReq.Stream = false
	openaiReq.StreamOptions = nil

	var openaiResp OpenAIResponse
	if err := c.DoJSONRequest(ctx, "POST", c.completionsURL(), openaiReq, &openaiResp, c.headers("")); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&openaiResp)
	if err != nil {
		return nil, &providers.ParseError{Provider: c.Name(), Cause: err}
	}

	return resp, nil
}

// StreamCompletion opens a streaming completion request and pumps
// chunks onto the returned channel. Errors before the first byte are
// returned directly; later failures arrive as the Error field of the
// final chunk. Caller cancellation closes the channel without an error
// chunk.
func (c *Client) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	openaiReq := transformRequest(req)
	openaiReq.Stream = true
	openaiReq.StreamOptions = &OpenAIStreamOptions{IncludeUsage: true}

	reader, err := newStreamReader(ctx, c.HTTPClient, c.completionsURL(), openaiReq, c.headers("text/event-stream"))
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk)

	go func() {
		defer close(chunks)
		defer reader.Close()

		for {
			chunk, err := reader.Read(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if ctx.Err() != nil {
					slog.DebugContext(ctx, "stream cancelled by caller", "provider", c.Name())
					return
				}
				select {
				case chunks <- &providers.StreamChunk{Error: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}
