package flowgraph

import (
	"fmt"
	"strings"
)

// DefaultGraphName labels runs of graphs that were not given a name.
const DefaultGraphName = "flowgraph"

// Graph is a mutable builder. Configure it from one goroutine, then call
// Compile to get an immutable CompiledGraph that is safe to share.
//
//	graph := flowgraph.NewGraph[Stats]().
//	    AddNode("validate", validate).
//	    AddNode("strike_rate", strikeRate).
//	    AddNode("summary", summary).
//	    AddEdge("validate", "strike_rate").
//	    AddEdge("strike_rate", "summary").
//	    AddEdge("summary", flowgraph.END).
//	    SetEntry("validate")
type Graph[S any] struct {
	name             string
	nodes            map[string]NodeFunc[S]
	order            []string
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string

	branchHook     BranchHook[S]
	forkJoinConfig ForkJoinConfig
}

// NewGraph returns an empty builder for state type S.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		name:             DefaultGraphName,
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
		forkJoinConfig:   DefaultForkJoinConfig(),
	}
}

// SetName labels the graph in logs, metrics and spans.
func (g *Graph[S]) SetName(name string) *Graph[S] {
	if name != "" {
		g.name = name
	}
	return g
}

// AddNode registers a node.
//
// It panics when id is empty, is the reserved END (any case), contains
// whitespace or is already registered, and when fn is nil. These are
// programming errors in graph construction, not runtime conditions.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}
	if lower := strings.ToLower(id); lower == "end" || lower == END {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}
	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}
	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddEdge adds a plain edge. Several plain edges out of one node make it a
// fork: its targets run concurrently and meet again at their nearest common
// successor. Endpoints are validated by Compile.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge routes out of from at runtime. A conditional edge
// takes precedence over plain edges from the same node.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S] {
	if router == nil {
		panic("flowgraph: router function cannot be nil")
	}
	g.conditionalEdges[from] = router
	return g
}

// SetEntry sets the first node to run.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.entryPoint = id
	return g
}

// SetForkJoinConfig configures how fork branches are run.
func (g *Graph[S]) SetForkJoinConfig(cfg ForkJoinConfig) *Graph[S] {
	g.forkJoinConfig = cfg
	return g
}

// SetBranchHook installs lifecycle callbacks for fork branches.
func (g *Graph[S]) SetBranchHook(hook BranchHook[S]) *Graph[S] {
	g.branchHook = hook
	return g
}
