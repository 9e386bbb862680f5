package graph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/graph"
	"github.com/flowgraph/flowgraph/store"
	"github.com/flowgraph/flowgraph/store/memory"
)

func TestStateManager_DefaultPolicyCheckpoints(t *testing.T) {
	t.Parallel()

	st := memory.NewMemoryCheckpointStore()
	sm := graph.NewStateManager(st)
	ctx := context.Background()

	execCtx := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, execCtx))
	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "a", "ra"))
	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "b", "rb"))
	require.NoError(t, sm.SaveFinalState(ctx, execCtx, "done"))

	// Default policy: initialization and completion only.
	checkpoints, err := st.List(ctx, execCtx.ExecutionID())
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, string(graph.TriggerInitialization), checkpoints[0].Trigger)
	assert.Equal(t, string(graph.TriggerCompletion), checkpoints[1].Trigger)
	assert.Equal(t, 1, checkpoints[0].Version)
	assert.Equal(t, 2, checkpoints[1].Version)
}

func TestStateManager_PerNodeCheckpointing(t *testing.T) {
	t.Parallel()

	st := memory.NewMemoryCheckpointStore()
	sm := graph.NewStateManager(st, graph.WithCheckpointPolicy(graph.CheckpointPolicy{
		graph.TriggerNodeExecution: true,
	}))
	ctx := context.Background()

	execCtx := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, execCtx))
	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "a", "ra"))
	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "b", "rb"))
	require.NoError(t, sm.SaveFinalState(ctx, execCtx, "done"))

	checkpoints, err := st.List(ctx, execCtx.ExecutionID())
	require.NoError(t, err)
	require.Len(t, checkpoints, 2, "only node triggers are enabled")
	assert.Equal(t, "a", checkpoints[0].NodeID)
	assert.Equal(t, "b", checkpoints[1].NodeID)

	state, ok := checkpoints[1].State.(*graph.ContextSnapshot)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, state.ExecutedNodes)
}

func TestStateManager_NilStoreDisablesCheckpointing(t *testing.T) {
	t.Parallel()

	sm := graph.NewStateManager(nil)
	ctx := context.Background()

	execCtx := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, execCtx))
	require.NoError(t, sm.SaveFinalState(ctx, execCtx, nil))

	// History still accumulates without a store.
	events := sm.History(execCtx.ExecutionID())
	require.Len(t, events, 2)
	assert.Equal(t, graph.EventInitialized, events[0].Type)
	assert.Equal(t, graph.EventCompleted, events[1].Type)
}

func TestStateManager_MetadataStamping(t *testing.T) {
	t.Parallel()

	sm := graph.NewStateManager(memory.NewMemoryCheckpointStore())
	ctx := context.Background()

	execCtx := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, execCtx))

	status, _ := execCtx.Metadata("status")
	assert.Equal(t, graph.StatusRunning, status)

	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "a", "ra"))
	last, _ := execCtx.Metadata("last_executed_node")
	assert.Equal(t, "a", last)
	assert.True(t, execCtx.IsNodeExecuted("a"))

	require.NoError(t, sm.UpdateEdgeState(ctx, execCtx, "e1", true))
	lastEdge, _ := execCtx.Metadata("last_evaluated_edge")
	assert.Equal(t, "e1", lastEdge)

	require.NoError(t, sm.SaveErrorState(ctx, execCtx, errors.New("boom")))
	status, _ = execCtx.Metadata("status")
	assert.Equal(t, graph.StatusFailed, status)
	msg, _ := execCtx.Metadata("error")
	assert.Equal(t, "boom", msg)
}

func TestStateManager_HistoryAndStats(t *testing.T) {
	t.Parallel()

	sm := graph.NewStateManager(memory.NewMemoryCheckpointStore())
	ctx := context.Background()

	execCtx := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, execCtx))
	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "a", nil))
	require.NoError(t, sm.UpdateEdgeState(ctx, execCtx, "e1", true))
	require.NoError(t, sm.UpdateNodeState(ctx, execCtx, "b", nil))
	require.NoError(t, sm.SaveFinalState(ctx, execCtx, "ok"))

	events := sm.History(execCtx.ExecutionID())
	require.Len(t, events, 5)
	assert.Equal(t, graph.EventEdgeEvaluated, events[2].Type)
	assert.Equal(t, "e1", events[2].EdgeID)

	stats := sm.Stats(execCtx.ExecutionID())
	assert.Equal(t, graph.StatusCompleted, stats.Status)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
	assert.GreaterOrEqual(t, stats.Duration, time.Duration(0))

	// Unknown executions read as still running with no activity.
	unknown := sm.Stats("nope")
	assert.Equal(t, graph.StatusRunning, unknown.Status)
	assert.Zero(t, unknown.NodeCount)
}

func TestStateManager_Aggregate(t *testing.T) {
	t.Parallel()

	sm := graph.NewStateManager(memory.NewMemoryCheckpointStore())
	ctx := context.Background()

	good := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, good))
	require.NoError(t, sm.SaveFinalState(ctx, good, nil))

	bad := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, bad))
	require.NoError(t, sm.SaveErrorState(ctx, bad, errors.New("boom")))

	open := graph.NewExecutionContext(linearGraph(), nil)
	require.NoError(t, sm.Initialize(ctx, open))

	agg := sm.Aggregate()
	assert.Equal(t, 3, agg.Total)
	assert.Equal(t, 1, agg.Succeeded)
	assert.Equal(t, 1, agg.Failed)
	assert.Equal(t, 1, agg.Running)
}

func TestStateManager_CheckpointFailureSurfaces(t *testing.T) {
	t.Parallel()

	sm := graph.NewStateManager(failingStore{})
	execCtx := graph.NewExecutionContext(linearGraph(), nil)

	err := sm.Initialize(context.Background(), execCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint on initialization failed")
}

type failingStore struct{}

func (failingStore) Save(context.Context, *store.Checkpoint) error { return errors.New("disk full") }
func (failingStore) Load(context.Context, string) (*store.Checkpoint, error) {
	return nil, errors.New("disk full")
}
func (failingStore) List(context.Context, string) ([]*store.Checkpoint, error) {
	return nil, errors.New("disk full")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("disk full") }
func (failingStore) Clear(context.Context, string) error  { return errors.New("disk full") }
