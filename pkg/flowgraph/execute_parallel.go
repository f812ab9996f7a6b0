package flowgraph

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// forkJoin runs every branch of fork concurrently from a cloned state until
// it reaches the join (or END), then merges the branch states. It returns
// the merged state and the node to continue from.
func (x *execution[S]) forkJoin(ec *executionContext, fork *ForkNode, state S) (S, string, error) {
	begin := time.Now()
	cfg := x.graph.forkJoinConfig
	hook := x.graph.branchHook

	next := fork.JoinNodeID
	if next == "" {
		next = END
	}

	branchCtx := context.Context(ec)
	if cfg.MergeTimeout > 0 {
		var cancel context.CancelFunc
		branchCtx, cancel = context.WithTimeout(branchCtx, cfg.MergeTimeout)
		defer cancel()
	}
	var g *errgroup.Group
	if cfg.FailFast {
		g, branchCtx = errgroup.WithContext(branchCtx)
	} else {
		g = new(errgroup.Group)
	}
	if cfg.MaxConcurrency > 0 {
		g.SetLimit(cfg.MaxConcurrency)
	}
	bec := ec.withStdContext(branchCtx)

	starts := make([]S, len(fork.Branches))
	for i, id := range fork.Branches {
		cloned, err := cloneState(state, id)
		if err == nil && hook != nil {
			cloned, err = hook.OnFork(bec, id, cloned)
		}
		if err != nil {
			return state, "", &ForkJoinError{ForkNodeID: fork.NodeID, BranchID: id, Err: err}
		}
		starts[i] = cloned
	}

	results := make([]BranchResult[S], len(fork.Branches))
	for i, id := range fork.Branches {
		g.Go(func() error {
			t := time.Now()
			final, err := x.walk(bec, starts[i], id, fork.JoinNodeID, false)
			results[i] = BranchResult[S]{BranchID: id, State: final, Error: err, Duration: time.Since(t)}
			if err != nil && hook != nil {
				hook.OnBranchError(bec, id, final, err)
			}
			return err
		})
	}
	// Branch errors are read back from results in declaration order.
	_ = g.Wait()

	if failed := firstFailure(results); failed != nil {
		return state, "", &ForkJoinError{ForkNodeID: fork.NodeID, BranchID: failed.BranchID, Err: failed.Error}
	}

	branches := make(map[string]S, len(results))
	for _, r := range results {
		branches[r.BranchID] = r.State
	}
	if hook != nil {
		if err := hook.OnJoin(bec, branches); err != nil {
			return state, "", &ForkJoinError{ForkNodeID: fork.NodeID, Err: err}
		}
	}

	merged := mergeStates(state, branches)
	observability.LogForkJoin(x.cfg.logger, fork.NodeID, next, len(fork.Branches),
		float64(time.Since(begin).Microseconds())/1000)
	return merged, next, nil
}

// firstFailure returns the first failed branch, preferring a real failure
// over a branch that was merely cancelled because another one failed.
func firstFailure[S any](results []BranchResult[S]) *BranchResult[S] {
	var cancelled *BranchResult[S]
	for i := range results {
		r := &results[i]
		if r.Error == nil {
			continue
		}
		var ce *CancellationError
		if errors.As(r.Error, &ce) {
			if cancelled == nil {
				cancelled = r
			}
			continue
		}
		return r
	}
	return cancelled
}
