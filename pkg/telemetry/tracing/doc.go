// Package tracing provides OpenTelemetry distributed tracing for the relay.
//
// A turn produces a "relay.turn" span under the inbound request's server
// span, and each backend call produces a client span whose context is sent
// upstream in the traceparent header. Spans are exported over OTLP gRPC.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//	    otlp:
//	      insecure: true
//
// Disabled tracing installs nothing and every span is a noop.
package tracing
