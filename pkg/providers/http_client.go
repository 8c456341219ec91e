package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPClient is the base implementation for HTTP-based provider
// adapters. It provides connection pooling, timeout handling, and
// upstream error decoding. Concrete adapters (OpenAI-compatible, etc.)
// embed this struct.
//
// Requests are single-attempt. The relay never retries: once partial
// output may have reached the caller a retry would duplicate it, and
// pre-stream failures are the caller's decision to repeat.
type HTTPClient struct {
	config       Config
	client       *http.Client
	streamClient *http.Client
}

// NewHTTPClient creates a pooled HTTP client for an upstream provider.
func NewHTTPClient(config Config) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.Timeout,
		ForceAttemptHTTP2:     true,
	}

	// http.Client.Timeout covers the body read too, so streaming calls
	// use a client without it. The transport's ResponseHeaderTimeout
	// still bounds the dial and header phase for both; body reads on a
	// stream are bounded by the request context.
	return &HTTPClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
	}
}

// Name returns the provider's configured name.
func (c *HTTPClient) Name() string {
	return c.config.Name
}

// Config returns the provider's configuration.
func (c *HTTPClient) Config() Config {
	return c.config
}

// upstreamErrorBody is the error envelope OpenAI-compatible upstreams
// return on non-2xx responses.
type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// DoRequest performs a single HTTP request against the upstream and
// maps failures onto the tagged error set. On success the caller owns
// the response body. Caller cancellation is returned as ctx.Err(),
// unwrapped. The whole request, body read included, is bounded by the
// configured timeout.
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, c.client, method, url, body, headers)
}

// DoStreamRequest is DoRequest for responses whose body is read
// incrementally. The configured timeout bounds only the dial and
// header phase; body reads run until the stream ends or the context is
// cancelled.
func (c *HTTPClient) DoStreamRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, c.streamClient, method, url, body, headers)
}

func (c *HTTPClient) do(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.DebugContext(ctx, "sending request to provider",
		"provider", c.config.Name,
		"method", method,
		"url", url,
	)

	resp, err := client.Do(req)
	if err != nil {
		// Caller cancellation propagates as-is, never classified.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &NetworkError{
			Provider: c.config.Name,
			Timeout:  isTimeout(err),
			Cause:    err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	// Read and close the error body; the caller only sees the mapped error.
	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	message, errType, errCode := decodeUpstreamError(errorBody)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			Message:    message,
			Code:       errCode,
		}

	case http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Provider:   c.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    message,
		}

	default:
		return nil, &ProviderError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			Type:       errType,
			Code:       errCode,
			Message:    message,
		}
	}
}

// DoJSONRequest performs a JSON request and decodes the response body.
func (c *HTTPClient) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Provider: c.config.Name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Provider:    c.config.Name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	// Both clients share one transport.
	c.client.CloseIdleConnections()
	slog.Debug("provider closed", "provider", c.config.Name)
	return nil
}

// decodeUpstreamError extracts message/type/code from an upstream error
// body, falling back to the raw body when it is not the standard envelope.
func decodeUpstreamError(body []byte) (message, errType, errCode string) {
	var envelope upstreamErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message, envelope.Error.Type, envelope.Error.Code
	}
	return string(body), "", ""
}

// isTimeout reports whether a transport error was a deadline expiry.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// parseRetryAfter parses the Retry-After header value, supporting both
// delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
