package checkpoint

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory. It backs tests and
// one-off chat sessions that are not meant to outlive the process.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*memoryRun
	clock  int64
	closed bool
}

type memoryRun struct {
	entries map[string]memoryEntry
	seq     int
	// touched orders runs by their last save.
	touched int64
	updated time.Time
}

type memoryEntry struct {
	data     []byte
	sequence int
	saved    time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*memoryRun)}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, runID, nodeID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	run := m.runs[runID]
	if run == nil {
		run = &memoryRun{entries: make(map[string]memoryEntry)}
		m.runs[runID] = run
	}
	m.clock++
	now := time.Now().UTC()
	run.seq++
	run.touched = m.clock
	run.updated = now
	run.entries[nodeID] = memoryEntry{data: slices.Clone(data), sequence: run.seq, saved: now}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, runID, nodeID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	entry, ok := run.entries[nodeID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(entry.data), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, runID string) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	infos := make([]Info, 0, len(run.entries))
	for nodeID, e := range run.entries {
		infos = append(infos, Info{
			RunID:     runID,
			NodeID:    nodeID,
			Sequence:  e.sequence,
			Timestamp: e.saved,
			Size:      int64(len(e.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int { return a.Sequence - b.Sequence })
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs(ctx context.Context) ([]RunInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	type ordered struct {
		info    RunInfo
		touched int64
	}
	all := make([]ordered, 0, len(m.runs))
	for id, run := range m.runs {
		if len(run.entries) == 0 {
			continue
		}
		all = append(all, ordered{
			info:    RunInfo{RunID: id, Checkpoints: len(run.entries), UpdatedAt: run.updated},
			touched: run.touched,
		})
	}
	slices.SortFunc(all, func(a, b ordered) int {
		switch {
		case a.touched > b.touched:
			return -1
		case a.touched < b.touched:
			return 1
		}
		return 0
	})

	runs := make([]RunInfo, len(all))
	for i, o := range all {
		runs[i] = o.info
	}
	return runs, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, runID, nodeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if run, ok := m.runs[runID]; ok {
		delete(run.entries, nodeID)
		if len(run.entries) == 0 {
			delete(m.runs, runID)
		}
	}
	return nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store. Stored data is dropped.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.runs = nil
	return nil
}

// Len reports the number of checkpoints across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, run := range m.runs {
		n += len(run.entries)
	}
	return n
}
