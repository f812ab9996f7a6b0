// Package checkpoint persists graph state between node executions so runs
// and chat threads can be resumed or inspected later.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoint payloads keyed by run and node.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data for (runID, nodeID), replacing any previous payload.
	// Every save advances the run's sequence.
	Save(ctx context.Context, runID, nodeID string, data []byte) error

	// Load returns the payload for (runID, nodeID) or ErrNotFound.
	Load(ctx context.Context, runID, nodeID string) ([]byte, error)

	// List returns the run's checkpoints ordered by sequence. A run with no
	// checkpoints yields an empty slice.
	List(ctx context.Context, runID string) ([]Info, error)

	// Runs returns every run with at least one checkpoint, most recently
	// updated first.
	Runs(ctx context.Context) ([]RunInfo, error)

	// Delete removes one checkpoint. Missing checkpoints are not an error.
	Delete(ctx context.Context, runID, nodeID string) error

	// DeleteRun removes every checkpoint of a run.
	DeleteRun(ctx context.Context, runID string) error

	Close() error
}

// Info describes a stored checkpoint without its payload.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// RunInfo summarises one run.
type RunInfo struct {
	RunID       string
	Checkpoints int
	UpdatedAt   time.Time
}

var (
	// ErrNotFound is returned by Load for a missing checkpoint.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
