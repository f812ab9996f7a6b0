package flowgraph

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// Run executes the graph from the entry point until a node routes to END.
//
// The returned state is the last committed state, also on error. Before
// each node the context is checked for cancellation; node panics are
// recovered into *PanicError; a fork node runs its branches concurrently
// and the run continues at the join with the merged state. With
// WithCheckpointing an envelope is saved after every node on the main path.
//
//	ctx := flowgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, Quadratic{A: 1, B: -3, C: 2})
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return state, ErrNilContext
	}
	cfg := newRunConfig(opts)

	if cfg.checkpointStore != nil {
		if cfg.runID == "" {
			return state, ErrRunIDRequired
		}
		// A reused run ID (a chat thread) keeps numbering its envelopes.
		latest, err := latestCheckpoint(ctx, cfg.checkpointStore, cfg.runID)
		switch {
		case err == nil:
			cfg.sequence = latest.Sequence
		case !isNoCheckpoints(err):
			return state, err
		}
	}

	return cg.execute(ctx, state, cg.entryPoint, &cfg)
}

// execution carries per-run bookkeeping shared by the main path and the
// fork branches.
type execution[S any] struct {
	graph *CompiledGraph[S]
	cfg   *runConfig
	nodes atomic.Int64
}

// execute wraps the walk from start with run-level logs, metrics and spans.
func (cg *CompiledGraph[S]) execute(ctx Context, state S, start string, cfg *runConfig) (result S, err error) {
	ec := asExecutionContext(ctx)
	if cfg.runID != "" {
		ec = ec.withRunID(cfg.runID)
	}
	x := &execution[S]{graph: cg, cfg: cfg}

	begin := time.Now()
	observability.LogRunStart(cfg.logger, cg.name, ec.runID)

	if cfg.tracingEnabled {
		spanCtx, span := cfg.spans.StartRunSpan(ec, cg.name, ec.runID)
		ec = ec.withStdContext(spanCtx)
		defer func() { cfg.spans.EndSpanWithError(span, err) }()
	}

	result, err = x.walk(ec, state, start, END, true)

	elapsed := time.Since(begin)
	cfg.metrics.RecordGraphRun(ec, cg.name, err == nil, elapsed)
	ms := float64(elapsed.Microseconds()) / 1000
	if err != nil {
		observability.LogRunError(cfg.logger, cg.name, ec.runID, err, ms, lastNodeOf(err))
	} else {
		observability.LogRunComplete(cfg.logger, cg.name, ec.runID, ms, int(x.nodes.Load()))
	}
	return result, err
}

// walk executes nodes from start until it reaches stop or END. The main path
// walks to END and persists checkpoints; a branch walks to its join.
func (x *execution[S]) walk(ec *executionContext, state S, start, stop string, persist bool) (S, error) {
	current, prev := start, ""
	iterations := 0

	for current != END && current != stop {
		iterations++
		if iterations > x.cfg.maxIterations {
			return state, &MaxIterationsError{Max: x.cfg.maxIterations, LastNodeID: current, State: state}
		}
		if err := ec.Err(); err != nil {
			return state, &CancellationError{NodeID: current, State: state, Cause: err}
		}

		var err error
		state, err = x.runNode(ec, current, state)
		if err != nil {
			return state, err
		}

		var next string
		state, next, err = x.route(ec, current, state)
		if err != nil {
			return state, err
		}

		if persist && x.cfg.checkpointStore != nil {
			if err := x.checkpoint(ec, current, prev, state, next); err != nil {
				return state, err
			}
		}
		prev, current = current, next
	}
	return state, nil
}

// runNode executes one node with its span, metrics and lifecycle logs.
func (x *execution[S]) runNode(ec *executionContext, nodeID string, state S) (S, error) {
	cfg := x.cfg
	observability.LogNodeStart(cfg.logger, nodeID)

	nodeEC := ec
	var finish func(error)
	if cfg.tracingEnabled {
		spanCtx, span := cfg.spans.StartNodeSpan(ec, nodeID)
		nodeEC = ec.withStdContext(spanCtx)
		finish = func(err error) { cfg.spans.EndSpanWithError(span, err) }
	}

	begin := time.Now()
	result, err := x.graph.executeNode(nodeEC, nodeID, state)
	elapsed := time.Since(begin)

	cfg.metrics.RecordNodeExecution(nodeEC, nodeID, elapsed, err)
	if finish != nil {
		finish(err)
	}
	if err != nil {
		observability.LogNodeError(cfg.logger, nodeID, err)
		return result, err
	}
	x.nodes.Add(1)
	observability.LogNodeComplete(cfg.logger, nodeID, float64(elapsed.Microseconds())/1000)
	return result, nil
}

// route picks the next node. A fork runs its branches here and continues at
// its join.
func (x *execution[S]) route(ec *executionContext, current string, state S) (S, string, error) {
	if fork, ok := x.graph.forkNodes[current]; ok {
		return x.forkJoin(ec, fork, state)
	}
	next, err := x.graph.nextNode(ec, current, state)
	return state, next, err
}

func (x *execution[S]) checkpoint(ec *executionContext, nodeID, prevNodeID string, state S, next string) error {
	cfg := x.cfg
	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", fmt.Errorf("%w: %w", ErrSerializeState, err))
	}

	cfg.sequence++
	data, err := checkpoint.New(cfg.runID, nodeID, cfg.sequence, stateBytes, next).
		WithPrevNode(prevNodeID).
		WithAttempt(ec.attempt).
		Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cfg.checkpointStore.Save(ec, cfg.runID, nodeID, data); err != nil {
		return fail("save", err)
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ec, nodeID, int64(len(data)))
	return nil
}

// executeNode calls the node function, converting panics to *PanicError and
// failures into *NodeError, or *CancellationError when the context ended.
func (cg *CompiledGraph[S]) executeNode(ec *executionContext, nodeID string, state S) (result S, err error) {
	fn, ok := cg.nodes[nodeID]
	if !ok {
		return state, &NodeError{NodeID: nodeID, Op: "lookup", Err: fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{NodeID: nodeID, Value: r, Stack: string(debug.Stack())}
		}
	}()

	result, err = fn(ec.withNodeID(nodeID), state)
	if err != nil {
		if cause := ec.Err(); cause != nil {
			return result, &CancellationError{NodeID: nodeID, State: result, Cause: cause, WasExecuting: true}
		}
		return result, &NodeError{NodeID: nodeID, Op: "execute", Err: err}
	}
	return result, nil
}

// nextNode resolves the successor of current. A router wins over plain
// edges; with plain edges only the first is followed.
func (cg *CompiledGraph[S]) nextNode(ec *executionContext, current string, state S) (string, error) {
	if router, ok := cg.conditionalEdges[current]; ok {
		next := router(ec.withNodeID(current), state)
		if next == "" {
			return "", &RouterError{FromNode: current, Returned: next, Err: ErrInvalidRouterResult}
		}
		if next != END && !cg.HasNode(next) {
			return "", &RouterError{FromNode: current, Returned: next, Err: ErrRouterTargetNotFound}
		}
		return next, nil
	}

	edges := cg.edges[current]
	if len(edges) == 0 {
		return "", &NodeError{NodeID: current, Op: "routing", Err: ErrNoOutgoingEdge}
	}
	return edges[0], nil
}
