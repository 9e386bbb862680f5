package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/store"
)

func sampleCheckpoint(id, execID string, version int) *store.Checkpoint {
	return &store.Checkpoint{
		ID:          id,
		ExecutionID: execID,
		Trigger:     "node_execution",
		NodeID:      "node-a",
		State:       map[string]any{"foo": "bar"},
		Timestamp:   time.Now(),
		Version:     version,
	}
}

func TestMemoryCheckpointStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	s := NewMemoryCheckpointStore()
	ctx := context.Background()

	cp := sampleCheckpoint("cp-1", "exec-1", 1)
	require.NoError(t, s.Save(ctx, cp))

	loaded, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, cp.ExecutionID, loaded.ExecutionID)
	assert.Equal(t, cp.Trigger, loaded.Trigger)

	// Load returns a copy; mutating it must not touch the stored value.
	loaded.Trigger = "mutated"
	again, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, "node_execution", again.Trigger)
}

func TestMemoryCheckpointStore_SaveRejectsMissingID(t *testing.T) {
	t.Parallel()

	s := NewMemoryCheckpointStore()
	assert.Error(t, s.Save(context.Background(), &store.Checkpoint{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestMemoryCheckpointStore_LoadNonExistent(t *testing.T) {
	t.Parallel()

	s := NewMemoryCheckpointStore()
	_, err := s.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint not found")
}

func TestMemoryCheckpointStore_ListOrdersByVersion(t *testing.T) {
	t.Parallel()

	s := NewMemoryCheckpointStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-3", "exec-1", 3)))
	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-1", "exec-1", 1)))
	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-2", "exec-1", 2)))
	require.NoError(t, s.Save(ctx, sampleCheckpoint("other", "exec-2", 1)))

	list, err := s.List(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "cp-1", list[0].ID)
	assert.Equal(t, "cp-2", list[1].ID)
	assert.Equal(t, "cp-3", list[2].ID)
}

func TestMemoryCheckpointStore_DeleteAndClear(t *testing.T) {
	t.Parallel()

	s := NewMemoryCheckpointStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-1", "exec-1", 1)))
	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-2", "exec-1", 2)))

	require.NoError(t, s.Delete(ctx, "cp-1"))
	_, err := s.Load(ctx, "cp-1")
	assert.Error(t, err)

	list, err := s.List(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Deleting a missing checkpoint is a no-op.
	assert.NoError(t, s.Delete(ctx, "cp-1"))

	require.NoError(t, s.Clear(ctx, "exec-1"))
	list, err = s.List(ctx, "exec-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryCheckpointStore_SaveOverwrites(t *testing.T) {
	t.Parallel()

	s := NewMemoryCheckpointStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("cp-1", "exec-1", 1)))
	updated := sampleCheckpoint("cp-1", "exec-1", 5)
	require.NoError(t, s.Save(ctx, updated))

	loaded, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Version)

	// Overwriting must not duplicate the execution index entry.
	list, err := s.List(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
