package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope used for meters and tracers.
const ScopeName = "github.com/randalmurphal/flowlab"

// MetricsRecorder records engine and refine loop metrics.
type MetricsRecorder interface {
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)
	RecordGraphRun(ctx context.Context, graph string, success bool, duration time.Duration)
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)
	// RecordRefinement records one finished refine loop. outcome is the final
	// verdict, or "failed".
	RecordRefinement(ctx context.Context, outcome string, iterations int, duration time.Duration)
}

type otelMetrics struct {
	nodeExecutions   metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	nodeErrors       metric.Int64Counter
	graphRuns        metric.Int64Counter
	graphLatency     metric.Float64Histogram
	checkpointSize   metric.Int64Histogram
	refinements      metric.Int64Counter
	refineIterations metric.Int64Histogram
	refineLatency    metric.Float64Histogram
}

// NewMetricsRecorder creates instruments on mp. A nil provider uses the
// global one.
func NewMetricsRecorder(mp metric.MeterProvider) (MetricsRecorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(ScopeName)

	var (
		m   otelMetrics
		err error
	)
	if m.nodeExecutions, err = meter.Int64Counter("flowlab.node.executions",
		metric.WithDescription("Node executions")); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("flowlab.node.latency",
		metric.WithDescription("Node execution latency"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("flowlab.node.errors",
		metric.WithDescription("Failed node executions")); err != nil {
		return nil, err
	}
	if m.graphRuns, err = meter.Int64Counter("flowlab.graph.runs",
		metric.WithDescription("Graph runs")); err != nil {
		return nil, err
	}
	if m.graphLatency, err = meter.Float64Histogram("flowlab.graph.latency",
		metric.WithDescription("Graph run latency"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("flowlab.checkpoint.size",
		metric.WithDescription("Checkpoint envelope size"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.refinements, err = meter.Int64Counter("flowlab.refine.runs",
		metric.WithDescription("Finished refine loops by outcome")); err != nil {
		return nil, err
	}
	if m.refineIterations, err = meter.Int64Histogram("flowlab.refine.iterations",
		metric.WithDescription("Optimize calls per refine loop")); err != nil {
		return nil, err
	}
	if m.refineLatency, err = meter.Float64Histogram("flowlab.refine.latency",
		metric.WithDescription("Refine loop latency"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, millis(duration), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordGraphRun(ctx context.Context, graph string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("graph", graph), attribute.Bool("success", success))
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, millis(duration), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

func (m *otelMetrics) RecordRefinement(ctx context.Context, outcome string, iterations int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.refinements.Add(ctx, 1, attrs)
	m.refineIterations.Record(ctx, int64(iterations), attrs)
	m.refineLatency.Record(ctx, millis(duration), attrs)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
