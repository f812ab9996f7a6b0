package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the envelope format version. Bump it on incompatible changes.
const Version = 1

// Checkpoint is the envelope written after each node: the serialized state
// plus enough routing information to continue the run.
type Checkpoint struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	Attempt    int    `json:"attempt"`
	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// New builds a version-stamped envelope around an already serialized state.
func New(runID, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
		Attempt:   1,
	}
}

// WithAttempt records the attempt number.
func (c *Checkpoint) WithAttempt(attempt int) *Checkpoint {
	c.Attempt = attempt
	return c
}

// WithPrevNode records the node executed before this one.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// Marshal encodes the envelope as JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes an envelope and rejects unknown versions.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Version != Version {
		return nil, &VersionError{Got: c.Version}
	}
	return &c, nil
}

// VersionError reports an envelope written by an incompatible version.
type VersionError struct {
	Got int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("checkpoint version %d, expected %d", e.Got, Version)
}
