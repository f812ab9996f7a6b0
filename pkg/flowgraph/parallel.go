package flowgraph

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParallelState lets a state type control how it is copied into fork
// branches and folded back together at the join.
//
// Without it, branches get a JSON deep copy and the join continues with the
// state as it was at the fork: branch results are dropped. Any graph that
// forks and needs branch output must implement it.
//
//	func (s Stats) Clone(string) Stats { return s }
//
//	func (s Stats) Merge(branches map[string]Stats) Stats {
//	    s.StrikeRate = branches["strike_rate"].StrikeRate
//	    s.BallsPerBoundary = branches["balls_per_boundary"].BallsPerBoundary
//	    return s
//	}
type ParallelState[S any] interface {
	// Clone returns an independent copy for branchID.
	Clone(branchID string) S

	// Merge combines branch results into the receiver, which is the state at
	// the fork. branches maps branch entry node to final branch state.
	Merge(branches map[string]S) S
}

// BranchHook observes fork branches. Calls happen in this order: OnFork for
// each branch before any starts, then OnBranchError for failed branches as
// they fail, then OnJoin once if all succeeded.
type BranchHook[S any] interface {
	// OnFork may adjust a branch's starting state. An error aborts the fork
	// before any branch runs.
	OnFork(ctx Context, branchID string, state S) (S, error)

	// OnJoin sees all branch states before they are merged. An error fails
	// the fork.
	OnJoin(ctx Context, branchStates map[string]S) error

	// OnBranchError is for cleanup only; the error is already recorded.
	OnBranchError(ctx Context, branchID string, state S, err error)
}

// ForkJoinConfig controls branch execution. The zero value runs every branch
// at once, waits for all of them and never times out.
type ForkJoinConfig struct {
	// MaxConcurrency caps concurrently running branches; 0 is unlimited.
	MaxConcurrency int

	// FailFast cancels the remaining branches when one fails.
	FailFast bool

	// MergeTimeout bounds the whole fan-out; 0 means no bound.
	MergeTimeout time.Duration
}

// DefaultForkJoinConfig returns the zero configuration.
func DefaultForkJoinConfig() ForkJoinConfig {
	return ForkJoinConfig{}
}

// ForkNode is a node whose plain edges fan out into parallel branches.
type ForkNode struct {
	NodeID string
	// Branches are the entry nodes of each branch, in edge order.
	Branches []string
	// JoinNodeID is where branches converge; empty when they only meet at END.
	JoinNodeID string
}

// JoinNode is where the branches of a fork converge.
type JoinNode struct {
	NodeID           string
	ForkNodeID       string
	ExpectedBranches []string
}

// BranchResult is the outcome of one branch.
type BranchResult[S any] struct {
	BranchID string
	State    S
	Error    error
	Duration time.Duration
}

func cloneState[S any](state S, branchID string) (S, error) {
	if ps, ok := any(state).(ParallelState[S]); ok {
		return ps.Clone(branchID), nil
	}

	var clone S
	data, err := json.Marshal(state)
	if err != nil {
		return clone, fmt.Errorf("clone state for branch %s: %w", branchID, err)
	}
	if err := json.Unmarshal(data, &clone); err != nil {
		return clone, fmt.Errorf("clone state for branch %s: %w", branchID, err)
	}
	return clone, nil
}

func mergeStates[S any](original S, branches map[string]S) S {
	if ps, ok := any(original).(ParallelState[S]); ok {
		return ps.Merge(branches)
	}
	return original
}
