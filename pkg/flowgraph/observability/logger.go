// Package observability holds the logging, metrics and tracing helpers shared
// by the graph engine, the refine controller and the CLI.
//
// Metrics and tracing are OpenTelemetry based and opt-in; the Noop
// implementations cost nothing when they are disabled.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a slog logger writing to w. format is "text" or "json";
// level is one of debug, info, warn, error.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ParseLevel maps a level name onto slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// EnrichLogger scopes a logger to one node of one run.
func EnrichLogger(logger *slog.Logger, runID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, graph, runID string) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("graph", graph),
		slog.String("run_id", runID))
}

// LogRunComplete logs a successful graph run.
func LogRunComplete(logger *slog.Logger, graph, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("graph", graph),
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount))
}

// LogRunError logs a failed graph run.
func LogRunError(logger *slog.Logger, graph, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("graph", graph),
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode))
}

func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting", slog.String("node_id", nodeID))
}

func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs))
}

func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()))
}

// LogForkJoin logs a completed fan-out.
func LogForkJoin(logger *slog.Logger, forkNode, joinNode string, branches int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("fork/join completed",
		slog.String("fork_node", forkNode),
		slog.String("join_node", joinNode),
		slog.Int("branches", branches),
		slog.Float64("duration_ms", durationMs))
}

func LogCheckpoint(logger *slog.Logger, nodeID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", nodeID),
		slog.Int("size_bytes", sizeBytes))
}

// LogCheckpointError logs a checkpoint failure the run survives.
func LogCheckpointError(logger *slog.Logger, nodeID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()))
}

// LogRefineStep logs one refine loop step.
func LogRefineStep(logger *slog.Logger, step string, iteration int, verdict string) {
	if logger == nil {
		return
	}
	logger.Debug("refine step",
		slog.String("step", step),
		slog.Int("iteration", iteration),
		slog.String("verdict", verdict))
}

// LogRefineDone logs the outcome of a refine loop.
func LogRefineDone(logger *slog.Logger, verdict string, iteration int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("refinement finished",
		slog.String("verdict", verdict),
		slog.Int("iteration", iteration),
		slog.Float64("duration_ms", durationMs))
}
