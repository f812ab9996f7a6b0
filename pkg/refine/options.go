package refine

import (
	"log/slog"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger enables step and outcome logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records one refinement per finished loop.
func WithMetrics(recorder observability.MetricsRecorder) Option {
	return func(c *Controller) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing opens a span around every collaborator call.
func WithTracing(spans observability.SpanManager) Option {
	return func(c *Controller) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithObserver registers fn to see the state before every transition,
// including the final Done.
func WithObserver(fn func(State, NextStep)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}
