package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// Context is what a node sees: a context.Context plus the services and
// identifiers of the current run.
type Context interface {
	context.Context

	// Logger is scoped to the run and node. Never nil.
	Logger() *slog.Logger

	// LLM returns the configured model client, or nil.
	LLM() llm.Client

	// Checkpointer returns the checkpoint store, or nil.
	Checkpointer() checkpoint.Store

	RunID() string

	// NodeID is empty outside node execution.
	NodeID() string

	// Attempt is 1 for the first attempt.
	Attempt() int
}

type executionContext struct {
	context.Context

	logger       *slog.Logger
	llmClient    llm.Client
	checkpointer checkpoint.Store
	runID        string
	nodeID       string
	attempt      int
}

func (c *executionContext) Logger() *slog.Logger           { return c.logger }
func (c *executionContext) LLM() llm.Client                { return c.llmClient }
func (c *executionContext) Checkpointer() checkpoint.Store { return c.checkpointer }
func (c *executionContext) RunID() string                  { return c.runID }
func (c *executionContext) NodeID() string                 { return c.nodeID }
func (c *executionContext) Attempt() int                   { return c.attempt }

// ContextOption configures NewContext.
type ContextOption func(*executionContext)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLLM sets the model client nodes call through ctx.LLM().
func WithLLM(client llm.Client) ContextOption {
	return func(c *executionContext) { c.llmClient = client }
}

// WithCheckpointer exposes a store to nodes.
func WithCheckpointer(store checkpoint.Store) ContextOption {
	return func(c *executionContext) { c.checkpointer = store }
}

// WithContextRunID fixes the run ID used in logs. Checkpointing uses the
// WithRunID run option instead.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) { c.runID = id }
}

// NewContext wraps ctx. The run ID defaults to a fresh UUID.
//
//	ctx := flowgraph.NewContext(context.Background(),
//	    flowgraph.WithLLM(client),
//	    flowgraph.WithLogger(logger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
		attempt: 1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// asExecutionContext adopts any Context implementation.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context:      ctx,
		logger:       logger,
		llmClient:    ctx.LLM(),
		checkpointer: ctx.Checkpointer(),
		runID:        ctx.RunID(),
		nodeID:       ctx.NodeID(),
		attempt:      max(ctx.Attempt(), 1),
	}
}

// withRunID rebinds the run ID, used when the run option overrides it.
func (c *executionContext) withRunID(runID string) *executionContext {
	clone := *c
	clone.runID = runID
	return &clone
}

// withStdContext swaps the underlying context, keeping services. Used to
// carry spans and branch cancellation.
func (c *executionContext) withStdContext(ctx context.Context) *executionContext {
	clone := *c
	clone.Context = ctx
	return &clone
}

// withNodeID scopes the context and its logger to one node.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	clone := *c
	clone.nodeID = nodeID
	clone.logger = observability.EnrichLogger(c.logger, c.runID, nodeID, c.attempt)
	return &clone
}
