package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/flowgraph/store"
)

// MemoryCheckpointStore keeps checkpoints in process memory. It is the
// default store and the one tests use; nothing survives a restart.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
	byExecution map[string][]string
}

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*store.Checkpoint),
		byExecution: make(map[string][]string),
	}
}

// Save stores a checkpoint.
func (s *MemoryCheckpointStore) Save(_ context.Context, checkpoint *store.Checkpoint) error {
	if checkpoint == nil || checkpoint.ID == "" {
		return fmt.Errorf("checkpoint must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checkpoints[checkpoint.ID]; !exists && checkpoint.ExecutionID != "" {
		s.byExecution[checkpoint.ExecutionID] = append(s.byExecution[checkpoint.ExecutionID], checkpoint.ID)
	}
	cp := *checkpoint
	s.checkpoints[checkpoint.ID] = &cp
	return nil
}

// Load retrieves a checkpoint by ID.
func (s *MemoryCheckpointStore) Load(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, fmt.Errorf("checkpoint not found: %s", checkpointID)
	}
	out := *cp
	return &out, nil
}

// List returns all checkpoints for an execution, oldest first.
func (s *MemoryCheckpointStore) List(_ context.Context, executionID string) ([]*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byExecution[executionID]
	out := make([]*store.Checkpoint, 0, len(ids))
	for _, id := range ids {
		if cp, ok := s.checkpoints[id]; ok {
			copied := *cp
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Delete removes a checkpoint.
func (s *MemoryCheckpointStore) Delete(_ context.Context, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil
	}
	delete(s.checkpoints, checkpointID)

	ids := s.byExecution[cp.ExecutionID]
	for i, id := range ids {
		if id == checkpointID {
			s.byExecution[cp.ExecutionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes all checkpoints for an execution.
func (s *MemoryCheckpointStore) Clear(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byExecution[executionID] {
		delete(s.checkpoints, id)
	}
	delete(s.byExecution, executionID)
	return nil
}
