package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the riverine tracer instance, using the global OTel tracer
// provider.
var tracer = otel.Tracer("riverine")

// SpanManager handles trace span lifecycle around the ingestion and
// sink boundaries. Use NewSpanManager() for OTel tracing or
// NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartIngestSpan starts a span for decoding one inbound payload.
	StartIngestSpan(ctx context.Context, transport string) (context.Context, trace.Span)

	// StartSinkSpan starts a span for one sink delivery.
	StartSinkSpan(ctx context.Context, sink string, batch int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by the global OTel tracer
// provider. Configure the provider before calling:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartIngestSpan starts a span for decoding one inbound payload.
func (m *otelSpanManager) StartIngestSpan(ctx context.Context, transport string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "riverine.ingest",
		trace.WithAttributes(attribute.String("transport", transport)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartSinkSpan starts a span for one sink delivery.
func (m *otelSpanManager) StartSinkSpan(ctx context.Context, sink string, batch int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "riverine.sink."+sink,
		trace.WithAttributes(
			attribute.String("sink", sink),
			attribute.Int("batch_size", batch),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NoopSpanManager is a SpanManager that records nothing.
type NoopSpanManager struct{}

// StartIngestSpan returns the context unchanged with a non-recording span.
func (NoopSpanManager) StartIngestSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// StartSinkSpan returns the context unchanged with a non-recording span.
func (NoopSpanManager) StartSinkSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}
