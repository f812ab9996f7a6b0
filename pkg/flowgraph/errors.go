package flowgraph

import (
	"errors"
	"fmt"
)

// Build and compile errors.
var (
	ErrNoEntryPoint   = errors.New("entry point not set")
	ErrEntryNotFound  = errors.New("entry point node not found")
	ErrNodeNotFound   = errors.New("node not found")
	ErrNoPathToEnd    = errors.New("no path to END from entry")
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")
)

// Execution errors.
var (
	ErrMaxIterations        = errors.New("exceeded maximum iterations")
	ErrNilContext           = errors.New("context cannot be nil")
	ErrInvalidRouterResult  = errors.New("router returned empty string")
	ErrRouterTargetNotFound = errors.New("router returned unknown node")
)

// Checkpoint and resume errors.
var (
	ErrRunIDRequired     = errors.New("run ID required for checkpointing")
	ErrSerializeState    = errors.New("failed to serialize state")
	ErrDeserializeState  = errors.New("failed to deserialize state")
	ErrNoCheckpoints     = errors.New("no checkpoints found for run")
	ErrInvalidResumeNode = errors.New("invalid resume node")
)

// CheckpointError reports a failed checkpoint write or read.
type CheckpointError struct {
	NodeID string
	// Op is "serialize", "marshal", "save" or "load".
	Op  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// NodeError wraps an error returned by a node.
type NodeError struct {
	NodeID string
	Op     string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PanicError is returned when a node panics. The run stops; the process does
// not crash.
type PanicError struct {
	NodeID string
	Value  any
	Stack  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// CancellationError is returned when the context ends mid-run. State holds
// the last committed state.
type CancellationError struct {
	NodeID       string
	State        any
	Cause        error
	WasExecuting bool
}

func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during node %s: %v", e.NodeID, e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

func (e *CancellationError) Unwrap() error { return e.Cause }

// RouterError reports an invalid router result.
type RouterError struct {
	FromNode string
	Returned string
	Err      error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

func (e *RouterError) Unwrap() error { return e.Err }

// MaxIterationsError is returned when a run executes more nodes than allowed.
type MaxIterationsError struct {
	Max        int
	LastNodeID string
	State      any
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

func (e *MaxIterationsError) Unwrap() error { return ErrMaxIterations }

// ForkJoinError reports a failed branch of a fork. BranchID is the first
// failing branch in declaration order.
type ForkJoinError struct {
	ForkNodeID string
	BranchID   string
	Err        error
}

func (e *ForkJoinError) Error() string {
	return fmt.Sprintf("fork/join error at %s (branch %s): %v", e.ForkNodeID, e.BranchID, e.Err)
}

func (e *ForkJoinError) Unwrap() error { return e.Err }

// lastNodeOf extracts the failing node from an execution error.
func lastNodeOf(err error) string {
	var (
		nodeErr   *NodeError
		panicErr  *PanicError
		maxErr    *MaxIterationsError
		cancelErr *CancellationError
		routeErr  *RouterError
		forkErr   *ForkJoinError
	)
	switch {
	case errors.As(err, &forkErr):
		return forkErr.ForkNodeID
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &routeErr):
		return routeErr.FromNode
	}
	return ""
}
