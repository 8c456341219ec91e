package types

import (
	"strconv"

	"scribe-hq/hermes/pkg/providers"
)

// Generation defaults applied when the caller omits the field.
const (
	// DefaultTemperature is used when the request has no temperature.
	DefaultTemperature = 0.7

	// DefaultMaxTokens is used when the request has no max_tokens.
	DefaultMaxTokens = 64000
)

// StreamGenerateRequest is the body of a relay stream call.
type StreamGenerateRequest struct {
	// Messages is the conversation history in order. Required.
	Messages []providers.Message `json:"messages"`

	// Model is the upstream model identifier. Required.
	Model string `json:"model"`

	// Temperature controls randomness (0.0 to 2.0). Optional.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits the generated output. Optional.
	MaxTokens *int `json:"max_tokens,omitempty"`
}

// Validate checks required fields and value ranges.
func (r *StreamGenerateRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{
			Field:   "model",
			Message: "model is required",
		}
	}

	if len(r.Messages) == 0 {
		return &ValidationError{
			Field:   "messages",
			Message: "messages must contain at least one message",
		}
	}

	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{
				Field:   "messages",
				Message: "message role is required",
			}
		}
		switch msg.Role {
		case providers.RoleSystem, providers.RoleUser, providers.RoleAssistant:
		default:
			return &ValidationError{
				Field:   "messages",
				Message: "message " + strconv.Itoa(i) + " has unknown role " + msg.Role,
			}
		}
	}

	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return &ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0.0 and 2.0",
		}
	}

	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &ValidationError{
			Field:   "max_tokens",
			Message: "max_tokens must be positive",
		}
	}

	return nil
}

// EffectiveTemperature returns the request temperature or the default.
func (r *StreamGenerateRequest) EffectiveTemperature() float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return DefaultTemperature
}

// EffectiveMaxTokens returns the request max_tokens or the default.
func (r *StreamGenerateRequest) EffectiveMaxTokens() int {
	if r.MaxTokens != nil {
		return *r.MaxTokens
	}
	return DefaultMaxTokens
}

// AddPromptRequest is the body for creating a prompt.
type AddPromptRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Validate checks required fields.
func (r *AddPromptRequest) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if r.Content == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	return nil
}

// UpdatePromptRequest is the body for replacing a prompt's content.
type UpdatePromptRequest struct {
	Content string `json:"content"`
}

// Validate checks required fields.
func (r *UpdatePromptRequest) Validate() error {
	if r.Content == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	return nil
}

// SelectionRequest is the body for adding or removing a prompt
// selection.
type SelectionRequest struct {
	PromptID string `json:"prompt_id"`
}

// Validate checks required fields.
func (r *SelectionRequest) Validate() error {
	if r.PromptID == "" {
		return &ValidationError{Field: "prompt_id", Message: "prompt_id is required"}
	}
	return nil
}

// ValidationError represents a request validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}
