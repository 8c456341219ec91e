package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe-hq/hermes/pkg/providers"
)

// Client consumes a relay stream endpoint from the caller side. It is
// what a chat frontend backend uses to talk to the relay without
// knowing the wire framing.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithUserID sets the user identity sent with every request.
func WithUserID(userID string) ClientOption {
	return func(c *Client) { c.userID = userID }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a relay client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// No overall timeout: streams are long-lived and bounded by
			// the caller's context instead.
			Timeout: 0,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamRequest is the body of a relay stream call.
type StreamRequest struct {
	Messages    []providers.Message `json:"messages"`
	Model       string              `json:"model,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

// StreamResult collects what a completed stream delivered.
type StreamResult struct {
	// Content is the full concatenated model output
	Content string

	// Usage is the accounting record, nil when the stream ended without
	// one
	Usage *providers.TokenUsage
}

// errorEnvelope is the JSON error body returned before streaming
// begins.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Stream opens a relay stream and invokes onContent for each content
// fragment as it arrives. The terminal error escape is surfaced as the
// returned error, not as content. Caller cancellation returns
// ctx.Err().
func (c *Client) Stream(ctx context.Context, req *StreamRequest, onContent func(string)) (*StreamResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.userID != "" {
		httpReq.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeErrorEnvelope(resp)
	}

	var result StreamResult
	var content strings.Builder
	var errText strings.Builder
	var carry string
	inError := false

	dec := NewDecoder(resp.Body)
	err = dec.Run(ctx,
		func(fragment string) {
			if inError {
				errText.WriteString(fragment)
				return
			}
			// A mid-stream failure arrives as an in-band escape. The
			// escape can straddle fragment boundaries, so a tail that
			// might be its start is carried into the next fragment
			// instead of delivered as content.
			buf := carry + fragment
			if i := strings.Index(buf, ErrorEscapePrefix); i >= 0 {
				deliver(&content, onContent, buf[:i])
				errText.WriteString(buf[i+len(ErrorEscapePrefix):])
				inError = true
				carry = ""
				return
			}
			hold := partialEscapeSuffix(buf)
			deliver(&content, onContent, buf[:len(buf)-hold])
			carry = buf[len(buf)-hold:]
		},
		func(usage providers.TokenUsage) {
			result.Usage = &usage
		},
	)
	if err != nil {
		return nil, err
	}
	if inError {
		return nil, errors.New(errText.String())
	}
	deliver(&content, onContent, carry)

	result.Content = content.String()
	return &result, nil
}

// deliver appends a fragment to the collected content and forwards it
// to the caller's callback.
func deliver(content *strings.Builder, onContent func(string), fragment string) {
	if fragment == "" {
		return
	}
	content.WriteString(fragment)
	if onContent != nil {
		onContent(fragment)
	}
}

// partialEscapeSuffix returns the length of the longest suffix of s
// that is a proper prefix of the error escape.
func partialEscapeSuffix(s string) int {
	max := len(ErrorEscapePrefix) - 1
	if max > len(s) {
		max = len(s)
	}
	for l := max; l > 0; l-- {
		if s[len(s)-l:] == ErrorEscapePrefix[:l] {
			return l
		}
	}
	return 0
}

// Complete runs a stream to completion and returns the collected
// result. Convenience for callers that do not need incremental
// delivery.
func (c *Client) Complete(ctx context.Context, req *StreamRequest) (*StreamResult, error) {
	return c.Stream(ctx, req, nil)
}

// decodeErrorEnvelope turns a non-200 response into an error carrying
// the server's message when the body parses, or the status otherwise.
func decodeErrorEnvelope(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(body) > 0 {
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("relay error (status %d): %s", resp.StatusCode, envelope.Error.Message)
		}
	}
	return fmt.Errorf("relay error: unexpected status %d", resp.StatusCode)
}

// Health probes the relay's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
