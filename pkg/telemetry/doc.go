// Package telemetry groups the relay's observability packages.
//
//   - logging: slog setup from configuration, API key redaction
//   - metrics: Prometheus collectors for turns, backend calls and sessions
//   - tracing: OpenTelemetry spans for requests, turns and backend calls
//   - health: readiness checks and build information endpoints
//
// Liveness is served by the proxy handlers; readiness probes the session
// store and the model catalog.
package telemetry
