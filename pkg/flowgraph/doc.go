/*
Package flowgraph runs typed state through a directed graph of nodes.

A graph is built with a fluent builder, validated once by Compile, and the
resulting CompiledGraph is immutable and safe to run concurrently.

# Basic Usage

	type State struct {
	    Topic string
	    Draft string
	}

	func draft(ctx flowgraph.Context, s State) (State, error) {
	    resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{
	        Messages: []llm.Message{{Role: llm.RoleUser, Content: "Write about " + s.Topic}},
	    })
	    if err != nil {
	        return s, err
	    }
	    s.Draft = resp.Content
	    return s, nil
	}

	compiled, err := flowgraph.NewGraph[State]().
	    AddNode("draft", draft).
	    AddEdge("draft", flowgraph.END).
	    SetEntry("draft").
	    Compile()
	if err != nil {
	    return err
	}

	ctx := flowgraph.NewContext(context.Background(), flowgraph.WithLLM(client))
	result, err := compiled.Run(ctx, State{Topic: "go"})

# Conditional Edges and Loops

A router picks the successor at runtime. Routing back to an earlier node
forms a loop; every run is bounded by WithMaxIterations (default 1000).

	graph.AddConditionalEdge("review", func(ctx flowgraph.Context, s State) string {
	    if s.Approved {
	        return flowgraph.END
	    }
	    return "revise"
	})

A router that returns an empty string or an unknown node fails the run
with a *RouterError.

# Fork/Join

A node with several static successors is a fork. Its branches run
concurrently on cloned state and are merged at the first node every branch
reaches. States that implement ParallelState control cloning and merging;
other states are cloned through JSON and the pre-fork state is kept.
SetForkJoinConfig bounds concurrency, enables fail-fast cancellation and
sets a merge timeout.

# Checkpointing

With WithCheckpointing and WithRunID the state is saved after each node on
the main path. A failed run continues from its last checkpoint:

	store, err := checkpoint.NewSQLiteStore("threads.db")
	...
	result, err := compiled.Run(ctx, state,
	    flowgraph.WithCheckpointing(store),
	    flowgraph.WithRunID("thread-1"))

	result, err = compiled.Resume(ctx, store, "thread-1")

Running again with the same run ID continues the checkpoint sequence, so
LatestState always returns the newest state for the run.

# Errors

Node failures are *NodeError, recovered panics are *PanicError, cancelled
runs are *CancellationError and exhausted loops are *MaxIterationsError.
All of them work with errors.Is and errors.As.

# Observability

WithObservabilityLogger, WithMetrics and WithTracing attach slog lifecycle
logs, OpenTelemetry instruments and a flowlab.run span with one child span
per node.
*/
package flowgraph
