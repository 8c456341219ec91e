// Package proxy implements the relay's HTTP surface: request parsing
// and validation, response writing, and the handlers and middleware in
// its subpackages.
//
// The central endpoint is the stream relay (POST /api/ai/stream),
// which re-encodes an upstream token stream into the byte protocol
// defined by pkg/relay. The prompt library endpoints manage stored
// prompts and per-user selections.
package proxy
