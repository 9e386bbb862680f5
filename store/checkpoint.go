package store

import (
	"context"
	"time"
)

// Checkpoint is a persisted snapshot of an execution context at a lifecycle
// trigger. State carries the context's wire shape (graph.ContextSnapshot);
// the store treats it as opaque JSON-serializable data.
type Checkpoint struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	Trigger     string         `json:"trigger"`
	NodeID      string         `json:"node_id,omitempty"`
	State       any            `json:"state"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Version     int            `json:"version"`
}

// CheckpointStore is the seam to an external persistence collaborator.
type CheckpointStore interface {
	// Save stores a checkpoint.
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves a checkpoint by ID.
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// List returns all checkpoints for an execution, oldest first.
	List(ctx context.Context, executionID string) ([]*Checkpoint, error)

	// Delete removes a checkpoint.
	Delete(ctx context.Context, checkpointID string) error

	// Clear removes all checkpoints for an execution.
	Clear(ctx context.Context, executionID string) error
}
