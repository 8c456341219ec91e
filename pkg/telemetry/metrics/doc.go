// Package metrics provides Prometheus metrics for the relay.
//
// Metrics (namespace_subsystem prefix from configuration, default
// scribe_hermes):
//   - requests_total: stream requests by model and status
//   - request_duration_seconds: stream duration histogram by model
//   - request_tokens_total: tokens by model and type (prompt, completion)
//   - stream_errors_total: classified mid-stream failures by category
//   - prompt_expansions_total: prompt reference expansions by result
//
// All metrics live on a private registry exposed by Handler, so tests
// and embedded uses never collide with the global default registry.
package metrics
