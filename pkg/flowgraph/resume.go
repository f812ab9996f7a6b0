package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
)

// ResumeOption configures Resume and ResumeFrom.
type ResumeOption func(*resumeConfig)

type resumeConfig struct {
	replayNode    bool
	stateOverride func(any) any
	validateState func(any) error
	runOpts       []RunOption
}

// WithReplayNode re-executes the checkpointed node instead of continuing
// after it.
func WithReplayNode() ResumeOption {
	return func(c *resumeConfig) { c.replayNode = true }
}

// WithStateOverride edits the restored state before execution continues.
// fn must return a value of the graph's state type; anything else is
// ignored.
func WithStateOverride(fn func(state any) any) ResumeOption {
	return func(c *resumeConfig) { c.stateOverride = fn }
}

// WithStateValidation rejects a restored state before execution continues.
func WithStateValidation(fn func(state any) error) ResumeOption {
	return func(c *resumeConfig) { c.validateState = fn }
}

// WithResumeRunOptions passes run options (limits, logging, metrics) to the
// resumed run. Checkpointing stays bound to the resumed run.
func WithResumeRunOptions(opts ...RunOption) ResumeOption {
	return func(c *resumeConfig) { c.runOpts = append(c.runOpts, opts...) }
}

// Resume continues runID after its most recent checkpoint.
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (S, error) {
	var zero S
	if ctx == nil {
		return zero, ErrNilContext
	}
	cp, err := latestCheckpoint(ctx, store, runID)
	if err != nil {
		return zero, err
	}
	return cg.resume(ctx, store, cp, opts)
}

// ResumeFrom continues runID after the checkpoint saved at nodeID.
func (cg *CompiledGraph[S]) ResumeFrom(ctx Context, store checkpoint.Store, runID, nodeID string, opts ...ResumeOption) (S, error) {
	var zero S
	if ctx == nil {
		return zero, ErrNilContext
	}
	cp, err := loadCheckpoint(ctx, store, runID, nodeID)
	if err != nil {
		return zero, err
	}
	return cg.resume(ctx, store, cp, opts)
}

func (cg *CompiledGraph[S]) resume(ctx Context, store checkpoint.Store, cp *checkpoint.Checkpoint, opts []ResumeOption) (S, error) {
	var rc resumeConfig
	for _, opt := range opts {
		opt(&rc)
	}

	state, err := decodeState[S](cp)
	if err != nil {
		return state, err
	}
	if rc.stateOverride != nil {
		if typed, ok := rc.stateOverride(state).(S); ok {
			state = typed
		}
	}
	if rc.validateState != nil {
		if err := rc.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	start := cp.NextNode
	if rc.replayNode {
		start = cp.NodeID
	}
	if start != END && !cg.HasNode(start) {
		return state, fmt.Errorf("%w: %s", ErrInvalidResumeNode, start)
	}

	cfg := newRunConfig(rc.runOpts)
	cfg.checkpointStore = store
	cfg.runID = cp.RunID
	cfg.sequence = cp.Sequence
	return cg.execute(ctx, state, start, &cfg)
}

// LatestState decodes the state saved by the most recent checkpoint of
// runID. It returns an error wrapping ErrNoCheckpoints for an unknown run.
func LatestState[S any](ctx context.Context, store checkpoint.Store, runID string) (S, error) {
	cp, err := latestCheckpoint(ctx, store, runID)
	if err != nil {
		var zero S
		return zero, err
	}
	return decodeState[S](cp)
}

func latestCheckpoint(ctx context.Context, store checkpoint.Store, runID string) (*checkpoint.Checkpoint, error) {
	infos, err := store.List(ctx, runID)
	if err != nil {
		return nil, &CheckpointError{Op: "load", Err: err}
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}
	return loadCheckpoint(ctx, store, runID, infos[len(infos)-1].NodeID)
}

func loadCheckpoint(ctx context.Context, store checkpoint.Store, runID, nodeID string) (*checkpoint.Checkpoint, error) {
	data, err := store.Load(ctx, runID, nodeID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s at node %s", ErrNoCheckpoints, runID, nodeID)
	}
	if err != nil {
		return nil, &CheckpointError{NodeID: nodeID, Op: "load", Err: err}
	}
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}
	return cp, nil
}

func decodeState[S any](cp *checkpoint.Checkpoint) (S, error) {
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return state, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}
	return state, nil
}

func isNoCheckpoints(err error) bool {
	return errors.Is(err, ErrNoCheckpoints)
}
