package backend

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "mercator-hq/relay/pkg/backend"

// startSpan opens a client span for one backend call. Streaming spans cover
// the request up to the response headers.
func (c *Client) startSpan(ctx context.Context, stream bool) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "backend.chat_completions",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("relay.model", c.config.Key),
			attribute.String("relay.backend.model_name", c.config.ModelName),
			attribute.Bool("relay.stream", stream),
			semconv.HTTPMethod("POST"),
			attribute.String("url.full", c.endpoint),
		),
	)
}

// endSpan records the final status and error of a backend call.
func endSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(semconv.HTTPStatusCode(status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if status >= 400 {
		span.SetStatus(codes.Error, "non-success status")
	}
	span.End()
}

// injectTrace writes the trace context in ctx into the outgoing headers.
func injectTrace(ctx context.Context, header propagation.HeaderCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, header)
}
