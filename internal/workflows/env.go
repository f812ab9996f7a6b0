// Package workflows implements the bundled workflows: the tweet refine loop
// and the roots, batting, essay and blog graphs.
package workflows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randalmurphal/flowlab/internal/prompts"
	"github.com/randalmurphal/flowlab/pkg/flowgraph"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// ErrNoLLM is returned by nodes that need a model when none is configured.
var ErrNoLLM = errors.New("no LLM client configured")

// Generation holds the sampling settings sent with every completion.
type Generation struct {
	MaxTokens   int
	Temperature *float64
}

func (g Generation) apply(req llm.CompletionRequest) llm.CompletionRequest {
	req.MaxTokens = g.MaxTokens
	req.Temperature = g.Temperature
	return req
}

// Env is what a workflow run needs from its caller.
type Env struct {
	LLM     llm.Client
	Prompts *prompts.Catalog
	Gen     Generation
	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager
	// MaxIteration caps tweet revisions when the input gives none; nil
	// means DefaultMaxIteration.
	MaxIteration *int
}

func (e Env) maxIteration() int {
	if e.MaxIteration != nil {
		return *e.MaxIteration
	}
	return DefaultMaxIteration
}

func (e Env) prompts() *prompts.Catalog {
	if e.Prompts != nil {
		return e.Prompts
	}
	return prompts.Default()
}

// engineContext builds the engine context for a run.
func (e Env) engineContext(ctx context.Context) flowgraph.Context {
	opts := []flowgraph.ContextOption{}
	if e.LLM != nil {
		opts = append(opts, flowgraph.WithLLM(e.LLM))
	}
	if e.Logger != nil {
		opts = append(opts, flowgraph.WithLogger(e.Logger))
	}
	return flowgraph.NewContext(ctx, opts...)
}

// runOptions maps the env onto engine run options.
func (e Env) runOptions() []flowgraph.RunOption {
	var opts []flowgraph.RunOption
	if e.Logger != nil {
		opts = append(opts, flowgraph.WithObservabilityLogger(e.Logger))
	}
	if e.Metrics != nil {
		opts = append(opts, flowgraph.WithMetrics(e.Metrics))
	}
	if e.Spans != nil {
		opts = append(opts, flowgraph.WithTracing(e.Spans))
	}
	return opts
}

// complete sends a catalog prompt and returns the cleaned reply.
func complete(ctx context.Context, client llm.Client, cat *prompts.Catalog, gen Generation, name string, vars map[string]any) (string, error) {
	if client == nil {
		return "", ErrNoLLM
	}
	req, err := cat.Request(name, vars)
	if err != nil {
		return "", err
	}
	resp, err := client.Complete(ctx, gen.apply(req))
	if err != nil {
		return "", err
	}
	return llm.CleanText(resp.Content), nil
}
