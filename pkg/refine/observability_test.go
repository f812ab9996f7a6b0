package refine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// TestRun_Telemetry tests refinement metrics and spans.
func TestRun_Telemetry(t *testing.T) {
	collector := observability.NewCollector()
	defer collector.Shutdown(context.Background())
	metrics, err := collector.Metrics()
	require.NoError(t, err)

	s := newScript(NeedsImprovement, Approved)
	ctrl := s.controller(WithMetrics(metrics), WithTracing(collector.Spans()))
	_, err = ctrl.Run(context.Background(), "go", 3)
	require.NoError(t, err)

	var names []string
	for _, span := range collector.EndedSpans() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{
		"flowlab.refine.generate",
		"flowlab.refine.evaluate",
		"flowlab.refine.optimize",
		"flowlab.refine.evaluate",
	}, names)

	totals, err := collector.Totals(context.Background())
	require.NoError(t, err)
	got := map[string]observability.MetricTotal{}
	for _, m := range totals {
		got[m.Name+"{"+m.Attrs+"}"] = m
	}
	assert.Equal(t, float64(1), got["flowlab.refine.runs{outcome=approved}"].Value)
	assert.Equal(t, float64(1), got["flowlab.refine.iterations{outcome=approved}"].Sum)
}

// TestRun_TelemetryOnFailure tests telemetry on a failed run.
func TestRun_TelemetryOnFailure(t *testing.T) {
	collector := observability.NewCollector()
	defer collector.Shutdown(context.Background())
	metrics, err := collector.Metrics()
	require.NoError(t, err)

	s := newScript()
	s.optErr = errors.New("boom")
	ctrl := s.controller(WithMetrics(metrics), WithTracing(collector.Spans()))
	_, err = ctrl.Run(context.Background(), "go", 3)
	require.Error(t, err)

	spans := collector.EndedSpans()
	require.NotEmpty(t, spans)
	last := spans[len(spans)-1]
	assert.Equal(t, "flowlab.refine.optimize", last.Name())
	assert.Equal(t, codes.Error, last.Status().Code)

	totals, err := collector.Totals(context.Background())
	require.NoError(t, err)
	var failed float64
	for _, m := range totals {
		if m.Name == "flowlab.refine.runs" && m.Attrs == "outcome=failed" {
			failed = m.Value
		}
	}
	assert.Equal(t, float64(1), failed)
}

// TestRun_Logging tests refinement log lines.
func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := newScript()
	_, err := s.controller(WithLogger(logger)).Run(context.Background(), "go", 1)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "step=evaluate")
	assert.Contains(t, out, "step=optimize")
	assert.Contains(t, out, "refinement finished")
	assert.Contains(t, out, "verdict=needs_improvement")
	assert.Contains(t, out, "iteration=1")
}
