package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TestSpanManager_Hierarchy tests run and node span nesting.
func TestSpanManager_Hierarchy(t *testing.T) {
	c := NewCollector()
	defer c.Shutdown(context.Background())
	spans := c.Spans()

	ctx, run := spans.StartRunSpan(context.Background(), "roots", "run-1")
	nodeCtx, node := spans.StartNodeSpan(ctx, "show_equation")
	spans.AddSpanEvent(nodeCtx, "checkpoint", attribute.Int("size", 10))
	spans.EndSpanWithError(node, nil)
	spans.EndSpanWithError(run, errors.New("boom"))

	ended := c.EndedSpans()
	require.Len(t, ended, 2)

	nodeSpan, runSpan := ended[0], ended[1]
	assert.Equal(t, "flowlab.node.show_equation", nodeSpan.Name())
	assert.Equal(t, "flowlab.run", runSpan.Name())
	assert.Equal(t, runSpan.SpanContext().SpanID(), nodeSpan.Parent().SpanID())
	assert.Equal(t, codes.Ok, nodeSpan.Status().Code)
	assert.Equal(t, codes.Error, runSpan.Status().Code)
	assert.Equal(t, "boom", runSpan.Status().Description)
	require.Len(t, nodeSpan.Events(), 1)
	assert.Equal(t, "checkpoint", nodeSpan.Events()[0].Name)
	assert.Contains(t, runSpan.Attributes(), attribute.String("run.id", "run-1"))
}

// TestSpanManager_StepSpan tests refinement step spans.
func TestSpanManager_StepSpan(t *testing.T) {
	c := NewCollector()
	defer c.Shutdown(context.Background())

	_, span := c.Spans().StartStepSpan(context.Background(), "optimize", 3)
	span.End()

	ended := c.EndedSpans()
	require.Len(t, ended, 1)
	assert.Equal(t, "flowlab.refine.optimize", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int("refine.iteration", 3))
}

// TestSpanManager_NilSpanAndNoRecording tests a nil span and the global tracer.
func TestSpanManager_NilSpanAndNoRecording(t *testing.T) {
	spans := NewSpanManager(nil)
	assert.NotPanics(t, func() {
		spans.EndSpanWithError(nil, errors.New("x"))
		spans.AddSpanEvent(context.Background(), "ignored")
	})
}

// TestNoopImplementations tests the no-op recorder and span manager.
func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	var m MetricsRecorder = NoopMetrics{}
	m.RecordNodeExecution(ctx, "n", 0, nil)
	m.RecordGraphRun(ctx, "g", true, 0)
	m.RecordCheckpoint(ctx, "n", 1)
	m.RecordRefinement(ctx, "approved", 0, 0)

	var s SpanManager = NoopSpanManager{}
	for _, start := range []func() (context.Context, trace.Span){
		func() (context.Context, trace.Span) { return s.StartRunSpan(ctx, "g", "r") },
		func() (context.Context, trace.Span) { return s.StartNodeSpan(ctx, "n") },
		func() (context.Context, trace.Span) { return s.StartStepSpan(ctx, "generate", 0) },
	} {
		got, span := start()
		assert.Equal(t, ctx, got)
		assert.False(t, span.IsRecording())
		s.EndSpanWithError(span, nil)
	}
	s.AddSpanEvent(ctx, "x")
}
