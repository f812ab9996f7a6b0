package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id    TEXT    NOT NULL,
	node_id   TEXT    NOT NULL,
	sequence  INTEGER NOT NULL,
	touched   INTEGER NOT NULL,
	saved_at  TEXT    NOT NULL,
	data      BLOB    NOT NULL,
	PRIMARY KEY (run_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_touched ON checkpoints(touched);
`

// SQLiteStore persists checkpoints in a single SQLite file using the pure Go
// modernc.org/sqlite driver. It suits one process at a time.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, runID, nodeID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, node_id, sequence, touched, saved_at, data)
		VALUES (?, ?,
			COALESCE((SELECT MAX(sequence) FROM checkpoints WHERE run_id = ?), 0) + 1,
			COALESCE((SELECT MAX(touched) FROM checkpoints), 0) + 1,
			?, ?)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			sequence = excluded.sequence,
			touched  = excluded.touched,
			saved_at = excluded.saved_at,
			data     = excluded.data
	`, runID, nodeID, runID, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", runID, nodeID, err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, runID, nodeID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM checkpoints WHERE run_id = ? AND node_id = ?`,
		runID, nodeID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s/%s: %w", runID, nodeID, err)
	}
	return data, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, sequence, saved_at, LENGTH(data)
		FROM checkpoints WHERE run_id = ?
		ORDER BY sequence`, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		info := Info{RunID: runID}
		var savedAt string
		if err := rows.Scan(&info.NodeID, &info.Sequence, &savedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, savedAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Runs implements Store.
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), MAX(touched) AS last,
			(SELECT saved_at FROM checkpoints c2 WHERE c2.run_id = c.run_id ORDER BY touched DESC LIMIT 1)
		FROM checkpoints c
		GROUP BY run_id
		ORDER BY last DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info    RunInfo
			last    int64
			savedAt string
		)
		if err := rows.Scan(&info.RunID, &info.Checkpoints, &last, &savedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, runID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE run_id = ? AND node_id = ?`, runID, nodeID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
