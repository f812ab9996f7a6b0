package flowgraph

import "slices"

// CompiledGraph is an immutable, validated graph. It is safe for concurrent
// Run calls.
type CompiledGraph[S any] struct {
	name             string
	nodes            map[string]NodeFunc[S]
	order            []string
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string

	predecessors  map[string][]string
	isConditional map[string]bool

	branchHook     BranchHook[S]
	forkJoinConfig ForkJoinConfig
	forkNodes      map[string]*ForkNode
	joinNodes      map[string]*JoinNode
}

// Name returns the graph label.
func (cg *CompiledGraph[S]) Name() string { return cg.name }

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S]) EntryPoint() string { return cg.entryPoint }

// NodeIDs returns node IDs in registration order.
func (cg *CompiledGraph[S]) NodeIDs() []string { return slices.Clone(cg.order) }

// HasNode reports whether id is a registered node.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, ok := cg.nodes[id]
	return ok
}

// Successors returns the plain edge targets of id. Router targets are only
// known at runtime and are not included.
func (cg *CompiledGraph[S]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return slices.Clone(cg.edges[id])
}

// Predecessors returns the nodes with a plain edge into id, sorted.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return slices.Clone(cg.predecessors[id])
}

// IsConditional reports whether id routes through a RouterFunc.
func (cg *CompiledGraph[S]) IsConditional(id string) bool { return cg.isConditional[id] }

// IsForkNode reports whether id fans out into parallel branches.
func (cg *CompiledGraph[S]) IsForkNode(id string) bool {
	_, ok := cg.forkNodes[id]
	return ok
}

// ForkNode returns the fork information for id, or nil.
func (cg *CompiledGraph[S]) ForkNode(id string) *ForkNode { return cg.forkNodes[id] }

// IsJoinNode reports whether parallel branches converge at id.
func (cg *CompiledGraph[S]) IsJoinNode(id string) bool {
	_, ok := cg.joinNodes[id]
	return ok
}

// JoinNode returns the join information for id, or nil.
func (cg *CompiledGraph[S]) JoinNode(id string) *JoinNode { return cg.joinNodes[id] }

// HasParallelExecution reports whether the graph contains any fork.
func (cg *CompiledGraph[S]) HasParallelExecution() bool { return len(cg.forkNodes) > 0 }
