// Package types defines the request and response types for the relay
// HTTP API: the stream request body, the prompt library payloads, and
// the OpenAI-compatible error envelope.
package types
