// Package handlers implements the relay's HTTP endpoints.
//
// Endpoints:
//   - POST /api/ai/stream: the relay stream (see pkg/relay for the wire
//     format)
//   - /api/prompts, /api/prompts/{id}: prompt library CRUD
//   - /api/selections, /api/selections/{id}: per-user prompt selections
//   - /api/usage: usage totals for the requesting user
//   - /health, /ready: liveness and readiness probes
package handlers
