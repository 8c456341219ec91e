// Package config defines the relay's configuration: the HTTP server,
// the upstream provider, the prompt store, usage accounting, and
// telemetry. Configuration is loaded from a YAML file, overridable
// with HERMES_* environment variables, and validated before use.
//
// Loading sequence:
//  1. Parse YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
//
// A missing upstream API key fails validation: the relay refuses to
// start rather than classify every request as credential-missing at
// runtime.
package config
