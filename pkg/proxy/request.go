package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"scribe-hq/hermes/pkg/proxy/types"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (10MB).
	MaxRequestBodySize = 10 * 1024 * 1024

	// UserIDHeader is the HTTP header carrying the caller's user identity.
	UserIDHeader = "X-User-ID"

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// Validator is implemented by request bodies that can check their own
// required fields.
type Validator interface {
	Validate() error
}

// ParseJSONRequest parses an HTTP request body into dst, enforcing the
// size limit and running dst's validation.
//
// The request body is limited to MaxRequestBodySize to prevent memory
// exhaustion.
func ParseJSONRequest(r *http.Request, dst Validator) error {
	limitedReader := io.LimitReader(r.Body, MaxRequestBodySize)

	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if len(body) >= MaxRequestBodySize {
		return &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	if err := dst.Validate(); err != nil {
		if valErr, ok := err.(*types.ValidationError); ok {
			return &RequestError{
				Message: valErr.Message,
				Code:    types.CodeInvalidValue,
				Param:   valErr.Field,
			}
		}
		return err
	}

	return nil
}

// ParseStreamGenerateRequest parses and validates a stream request
// body.
func ParseStreamGenerateRequest(r *http.Request) (*types.StreamGenerateRequest, error) {
	var req types.StreamGenerateRequest
	if err := ParseJSONRequest(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ExtractUserID extracts the user ID from the X-User-ID header.
// If the header is not present, it returns an empty string.
func ExtractUserID(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

// ExtractRequestID extracts the request ID from the X-Request-ID
// header, allowing clients to provide their own IDs for correlation.
// If not provided, the middleware generates one.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// RequestError represents a request parsing or validation error.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an OpenAI-compatible
// error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
