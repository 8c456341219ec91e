// Hermes is a streaming relay for LLM chat completions.
//
// It sits between a chat frontend and an OpenAI-compatible upstream,
// providing:
//   - A single outbound byte stream carrying content, a usage record,
//     and an in-band error escape
//   - Server-side expansion of encrypted prompt references with
//     injection-defense boilerplate
//   - A prompt library with per-user selections
//   - Usage accounting with scheduled retention
//
// Usage:
//
//	# Start server with default configuration
//	hermes run
//
//	# Start with custom configuration file
//	hermes run --config /path/to/config.yaml
//
//	# Validate configuration without starting
//	hermes validate
//
//	# Show version information
//	hermes version
package main

func main() {
	Execute()
}
