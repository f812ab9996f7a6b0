package flowgraph

import (
	"log/slog"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// DefaultMaxIterations bounds node executions per run.
const DefaultMaxIterations = 1000

type runConfig struct {
	maxIterations int

	checkpointStore        checkpoint.Store
	runID                  string
	sequence               int
	checkpointFailureFatal bool

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RunOption configures a single Run, Resume or ResumeFrom call.
type RunOption func(*runConfig)

// WithMaxIterations caps node executions; a run that exceeds it fails with
// *MaxIterationsError. Non-positive values keep the default.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithCheckpointing saves an envelope to store after every node of the main
// path. It requires WithRunID.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) { c.checkpointStore = store }
}

// WithRunID names the run for checkpointing, logs and spans. For the
// chatbot this is the thread ID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// WithCheckpointFailureFatal makes a failed checkpoint abort the run instead
// of being logged and skipped.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) { c.checkpointFailureFatal = fatal }
}

// WithObservabilityLogger enables run and node lifecycle logging.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = logger }
}

// WithMetrics records node, run and checkpoint metrics.
func WithMetrics(recorder observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing emits a span per run and per node.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}
