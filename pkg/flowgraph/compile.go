package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Compile validates the builder and freezes it into a CompiledGraph.
// All problems found are joined into one error.
//
// Checks: the entry point is set and registered; every edge endpoint is a
// registered node (or END as a target); every node reachable from the entry
// has an outgoing edge; END is reachable from the entry. Nodes that cannot
// be reached from the entry are only logged.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, ok := g.nodes[g.entryPoint]; !ok {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for _, from := range slices.Sorted(maps.Keys(g.edges)) {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.edges[from] {
			if _, ok := g.nodes[to]; !ok && to != END {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}
	for _, from := range slices.Sorted(maps.Keys(g.conditionalEdges)) {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
	}

	if _, ok := g.nodes[g.entryPoint]; ok {
		reachable := g.reachableFromEntry()
		for _, id := range g.order {
			if !reachable[id] {
				slog.Warn("node is unreachable from entry", "graph", g.name, "node_id", id)
				continue
			}
			if len(g.edges[id]) == 0 && g.conditionalEdges[id] == nil {
				errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
			}
		}
		if !g.canReachEnd(g.entryPoint) {
			errs = append(errs, ErrNoPathToEnd)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g.freeze(), nil
}

// canReachEnd propagates "reaches END" backwards over plain edges until it
// settles. A router may return END, so conditional nodes always qualify.
func (g *Graph[S]) canReachEnd(start string) bool {
	reaches := map[string]bool{END: true}
	for from := range g.conditionalEdges {
		reaches[from] = true
	}
	for changed := true; changed; {
		changed = false
		for from, targets := range g.edges {
			if reaches[from] {
				continue
			}
			if slices.ContainsFunc(targets, func(t string) bool { return reaches[t] }) {
				reaches[from] = true
				changed = true
			}
		}
	}
	return reaches[start]
}

// reachableFromEntry walks plain edges from the entry. Router targets are
// unknown until runtime, so a conditional node makes every node reachable.
func (g *Graph[S]) reachableFromEntry() map[string]bool {
	seen := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, ok := g.conditionalEdges[current]; ok {
			for id := range g.nodes {
				seen[id] = true
			}
			return seen
		}
		for _, next := range g.edges[current] {
			if next != END && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func (g *Graph[S]) freeze() *CompiledGraph[S] {
	edges := make(map[string][]string, len(g.edges))
	predecessors := make(map[string][]string)
	for from, targets := range g.edges {
		edges[from] = slices.Clone(targets)
		for _, to := range targets {
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}
	for _, preds := range predecessors {
		slices.Sort(preds)
	}

	isConditional := make(map[string]bool, len(g.conditionalEdges))
	for from := range g.conditionalEdges {
		isConditional[from] = true
	}

	forks, joins := detectForkJoin(edges, isConditional)

	return &CompiledGraph[S]{
		name:             g.name,
		nodes:            maps.Clone(g.nodes),
		order:            slices.Clone(g.order),
		edges:            edges,
		conditionalEdges: maps.Clone(g.conditionalEdges),
		entryPoint:       g.entryPoint,
		predecessors:     predecessors,
		isConditional:    isConditional,
		branchHook:       g.branchHook,
		forkJoinConfig:   g.forkJoinConfig,
		forkNodes:        forks,
		joinNodes:        joins,
	}
}

// detectForkJoin finds forks (non-conditional nodes with several plain
// edges) and pairs each with its join: the node common to every branch that
// is closest to the first branch. A fork whose branches only meet at END has
// no join and its branches run to completion.
func detectForkJoin(edges map[string][]string, isConditional map[string]bool) (map[string]*ForkNode, map[string]*JoinNode) {
	forks := make(map[string]*ForkNode)
	joins := make(map[string]*JoinNode)

	for from, targets := range edges {
		if len(targets) < 2 || isConditional[from] {
			continue
		}
		fork := &ForkNode{NodeID: from, Branches: slices.Clone(targets)}
		fork.JoinNodeID = findJoin(targets, edges)
		forks[from] = fork

		if fork.JoinNodeID != "" {
			joins[fork.JoinNodeID] = &JoinNode{
				NodeID:           fork.JoinNodeID,
				ForkNodeID:       from,
				ExpectedBranches: slices.Clone(targets),
			}
		}
	}
	return forks, joins
}

func findJoin(branches []string, edges map[string][]string) string {
	common := reachableFrom(branches[0], edges)
	for _, b := range branches[1:] {
		other := reachableFrom(b, edges)
		for id := range common {
			if !other[id] {
				delete(common, id)
			}
		}
	}
	if len(common) == 0 {
		return ""
	}

	// Breadth first from the first branch gives the closest common node.
	seen := map[string]bool{branches[0]: true}
	queue := []string{branches[0]}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if common[current] {
			return current
		}
		for _, next := range edges[current] {
			if next != END && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return ""
}

func reachableFrom(start string, edges map[string][]string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range edges[current] {
			if next != END && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}
