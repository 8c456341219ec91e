package providers

import (
	"fmt"
	"time"
)

// The error types below form a closed set of tagged variants. Callers
// classify failures with errors.As on these types instead of probing
// error shapes; every adapter failure is wrapped in exactly one of
// them. Cancellation is never wrapped: a cancelled call returns
// ctx.Err() unchanged.

// ConfigError reports a missing or invalid provider configuration,
// detected at startup or on first use, before any upstream contact.
type ConfigError struct {
	// Provider is the provider with invalid configuration
	Provider string

	// Field is the configuration field at fault
	Field string

	// Message describes the problem
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// AuthError reports that the upstream rejected the API key (401/403).
type AuthError struct {
	// Provider is the provider that rejected authentication
	Provider string

	// StatusCode is the HTTP status the upstream returned
	StatusCode int

	// Message is the upstream error message
	Message string

	// Code is the upstream machine-readable error code, if any
	Code string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed (status %d): %s",
		e.Provider, e.StatusCode, e.Message)
}

// RateLimitError reports HTTP 429 from the upstream.
type RateLimitError struct {
	// Provider is the provider that rate limited the request
	Provider string

	// RetryAfter is the wait the upstream suggested, if any
	RetryAfter time.Duration

	// Message is the upstream error message
	Message string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// ProviderError reports a status-coded upstream failure that is not an
// auth or rate-limit condition. It carries the structured fields the
// upstream returned so callers can match on a closed set.
type ProviderError struct {
	// Provider is the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code
	StatusCode int

	// Type is the upstream error type (e.g. "invalid_request_error")
	Type string

	// Code is the upstream machine-readable code (e.g. "invalid_api_key")
	Code string

	// Message is the upstream error message
	Message string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// NetworkError reports a transport-level failure: connection refused,
// DNS failure, or a request that timed out before completing.
type NetworkError struct {
	// Provider is the provider the request was addressed to
	Provider string

	// Timeout is true when the failure was a deadline expiry
	Timeout bool

	// Cause is the underlying transport error
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %q request timeout: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("provider %q network error: %v", e.Provider, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// ParseError reports a malformed upstream response.
type ParseError struct {
	// Provider is the provider that returned the malformed response
	Provider string

	// RawResponse is the body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ValidationError reports an invalid request, caught before any
// upstream contact.
type ValidationError struct {
	// Field is the invalid field
	Field string

	// Message describes what is invalid
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// StreamError reports a failure after the stream was opened and
// content may already have been delivered.
type StreamError struct {
	// Provider is the provider where the stream failed
	Provider string

	// Message describes the failure
	Message string

	// Cause is the underlying error
	Cause error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}
