package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanManager starts and ends spans for runs, nodes and refine steps.
type SpanManager interface {
	StartRunSpan(ctx context.Context, graph, runID string) (context.Context, trace.Span)
	// StartNodeSpan starts a child of the span in ctx.
	StartNodeSpan(ctx context.Context, nodeID string) (context.Context, trace.Span)
	// StartStepSpan starts a span for one refine loop step.
	StartStepSpan(ctx context.Context, step string, iteration int) (context.Context, trace.Span)
	EndSpanWithError(span trace.Span, err error)
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager traces through tp. A nil provider uses the global one.
func NewSpanManager(tp trace.TracerProvider) SpanManager {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &otelSpanManager{tracer: tp.Tracer(ScopeName)}
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, graph, runID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flowlab.run",
		trace.WithAttributes(
			attribute.String("graph.name", graph),
			attribute.String("run.id", runID)),
		trace.WithSpanKind(trace.SpanKindInternal))
}

func (m *otelSpanManager) StartNodeSpan(ctx context.Context, nodeID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flowlab.node."+nodeID,
		trace.WithAttributes(attribute.String("node.id", nodeID)),
		trace.WithSpanKind(trace.SpanKindInternal))
}

func (m *otelSpanManager) StartStepSpan(ctx context.Context, step string, iteration int) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flowlab.refine."+step,
		trace.WithAttributes(
			attribute.String("refine.step", step),
			attribute.Int("refine.iteration", iteration)),
		trace.WithSpanKind(trace.SpanKindInternal))
}

// EndSpanWithError sets the span status from err and ends it.
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

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
