package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Relay-specific attribute keys.
const (
	AttrSessionID      = attribute.Key("relay.session_id")
	AttrModel          = attribute.Key("relay.model")
	AttrStream         = attribute.Key("relay.stream")
	AttrFinishReason   = attribute.Key("relay.finish_reason")
	AttrDeltas         = attribute.Key("relay.deltas")
	AttrToolCalls      = attribute.Key("relay.tool_calls")
	AttrMessages       = attribute.Key("relay.messages")
	AttrBackendStatus  = attribute.Key("relay.backend.status")
	AttrBackendAttempt = attribute.Key("relay.backend.attempt")
)

// SetTurnAttributes records who a turn belongs to and how it is served.
func SetTurnAttributes(span trace.Span, sessionID, model string, stream bool) {
	span.SetAttributes(
		AttrSessionID.String(sessionID),
		AttrModel.String(model),
		AttrStream.Bool(stream),
	)
}

// SetOutcomeAttributes records how a turn ended.
func SetOutcomeAttributes(span trace.Span, reason string, deltas, toolCalls int) {
	span.SetAttributes(
		AttrFinishReason.String(reason),
		AttrDeltas.Int(deltas),
		AttrToolCalls.Int(toolCalls),
	)
}

// HTTPRequestAttributes describes an inbound request.
func HTTPRequestAttributes(r *http.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPMethod(r.Method),
		semconv.HTTPRoute(r.URL.Path),
		semconv.UserAgentOriginal(r.UserAgent()),
	}
}

// SetHTTPStatus records a response status; 5xx marks the span failed.
func SetHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(semconv.HTTPStatusCode(status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// AddEvent adds a timestamped event to span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
