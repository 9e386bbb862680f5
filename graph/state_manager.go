package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/flowgraph/log"
	"github.com/flowgraph/flowgraph/store"
)

// CheckpointTrigger names a lifecycle point at which a checkpoint may be
// written.
type CheckpointTrigger string

const (
	TriggerInitialization CheckpointTrigger = "initialization"
	TriggerNodeExecution  CheckpointTrigger = "node_execution"
	TriggerCompletion     CheckpointTrigger = "completion"
	TriggerError          CheckpointTrigger = "error"
)

// CheckpointPolicy decides which triggers actually checkpoint. Missing
// entries mean "do not checkpoint".
type CheckpointPolicy map[CheckpointTrigger]bool

// DefaultCheckpointPolicy checkpoints on initialization, completion, and
// error, but not per node, to bound I/O overhead on large graphs.
func DefaultCheckpointPolicy() CheckpointPolicy {
	return CheckpointPolicy{
		TriggerInitialization: true,
		TriggerNodeExecution:  false,
		TriggerCompletion:     true,
		TriggerError:          true,
	}
}

// Execution status values recorded in context metadata and history.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// HistoryEvent is one entry in the state manager's execution history.
type HistoryEvent struct {
	ExecutionID string         `json:"execution_id"`
	Type        string         `json:"type"`
	NodeID      string         `json:"node_id,omitempty"`
	EdgeID      string         `json:"edge_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
}

// History event types.
const (
	EventInitialized   = "initialized"
	EventNodeExecuted  = "node_executed"
	EventEdgeEvaluated = "edge_evaluated"
	EventCompleted     = "completed"
	EventFailed        = "failed"
)

// StateManager wraps every execution context mutation with lifecycle hooks:
// it stamps metadata, appends history, and checkpoints according to policy.
// One state manager may serve many runs; it keys everything by execution ID.
type StateManager struct {
	mu       sync.Mutex
	store    store.CheckpointStore
	policy   CheckpointPolicy
	logger   log.Logger
	history  []HistoryEvent
	versions map[string]int
}

// StateManagerOption configures a StateManager.
type StateManagerOption func(*StateManager)

// WithCheckpointPolicy overrides the default checkpoint policy.
func WithCheckpointPolicy(policy CheckpointPolicy) StateManagerOption {
	return func(sm *StateManager) { sm.policy = policy }
}

// WithStateLogger sets the logger used for checkpoint diagnostics.
func WithStateLogger(logger log.Logger) StateManagerOption {
	return func(sm *StateManager) { sm.logger = logger }
}

// NewStateManager creates a state manager writing checkpoints to st. A nil
// store disables checkpointing entirely; history still accumulates.
func NewStateManager(st store.CheckpointStore, opts ...StateManagerOption) *StateManager {
	sm := &StateManager{
		store:    st,
		policy:   DefaultCheckpointPolicy(),
		logger:   log.NoOpLogger{},
		versions: make(map[string]int),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Initialize stamps a fresh context as started and checkpoints if the
// initialization trigger is enabled.
func (sm *StateManager) Initialize(ctx context.Context, execCtx *ExecutionContext) error {
	execCtx.SetMetadata("status", StatusRunning)
	execCtx.SetMetadata("initialized_at", time.Now().Format(time.RFC3339Nano))

	sm.record(HistoryEvent{
		ExecutionID: execCtx.ExecutionID(),
		Type:        EventInitialized,
		Timestamp:   time.Now(),
	})
	return sm.checkpoint(ctx, execCtx, TriggerInitialization, "")
}

// UpdateNodeState marks a node executed and stores its result.
func (sm *StateManager) UpdateNodeState(ctx context.Context, execCtx *ExecutionContext, nodeID string, result any) error {
	execCtx.MarkNodeExecuted(nodeID)
	execCtx.SetNodeResult(nodeID, result)
	execCtx.SetMetadata("last_executed_node", nodeID)

	sm.record(HistoryEvent{
		ExecutionID: execCtx.ExecutionID(),
		Type:        EventNodeExecuted,
		NodeID:      nodeID,
		Timestamp:   time.Now(),
	})
	return sm.checkpoint(ctx, execCtx, TriggerNodeExecution, nodeID)
}

// UpdateEdgeState stores the boolean outcome of an edge evaluation.
func (sm *StateManager) UpdateEdgeState(ctx context.Context, execCtx *ExecutionContext, edgeID string, result bool) error {
	execCtx.SetEdgeResult(edgeID, result)
	execCtx.SetMetadata("last_evaluated_edge", edgeID)

	sm.record(HistoryEvent{
		ExecutionID: execCtx.ExecutionID(),
		Type:        EventEdgeEvaluated,
		EdgeID:      edgeID,
		Timestamp:   time.Now(),
		Details:     map[string]any{"result": result},
	})
	return nil
}

// SaveFinalState marks a run completed, records its result and duration, and
// checkpoints if the completion trigger is enabled.
func (sm *StateManager) SaveFinalState(ctx context.Context, execCtx *ExecutionContext, result any) error {
	duration := execCtx.Elapsed()
	execCtx.SetMetadata("status", StatusCompleted)
	execCtx.SetMetadata("completed_at", time.Now().Format(time.RFC3339Nano))
	execCtx.SetMetadata("duration_ms", duration.Milliseconds())
	execCtx.SetMetadata("result", result)

	sm.record(HistoryEvent{
		ExecutionID: execCtx.ExecutionID(),
		Type:        EventCompleted,
		Timestamp:   time.Now(),
		Details: map[string]any{
			"duration_ms": duration.Milliseconds(),
			"nodes":       execCtx.ExecutedCount(),
		},
	})
	return sm.checkpoint(ctx, execCtx, TriggerCompletion, "")
}

// SaveErrorState marks a run failed, records the error, and checkpoints if
// the error trigger is enabled.
func (sm *StateManager) SaveErrorState(ctx context.Context, execCtx *ExecutionContext, execErr error) error {
	execCtx.SetMetadata("status", StatusFailed)
	execCtx.SetMetadata("failed_at", time.Now().Format(time.RFC3339Nano))
	execCtx.SetMetadata("duration_ms", execCtx.Elapsed().Milliseconds())
	if execErr != nil {
		execCtx.SetMetadata("error", execErr.Error())
	}

	details := map[string]any{"nodes": execCtx.ExecutedCount()}
	if execErr != nil {
		details["error"] = execErr.Error()
	}
	sm.record(HistoryEvent{
		ExecutionID: execCtx.ExecutionID(),
		Type:        EventFailed,
		Timestamp:   time.Now(),
		Details:     details,
	})
	return sm.checkpoint(ctx, execCtx, TriggerError, "")
}

func (sm *StateManager) record(event HistoryEvent) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.history = append(sm.history, event)
}

func (sm *StateManager) checkpoint(ctx context.Context, execCtx *ExecutionContext, trigger CheckpointTrigger, nodeID string) error {
	if sm.store == nil || !sm.policy[trigger] {
		return nil
	}

	sm.mu.Lock()
	sm.versions[execCtx.ExecutionID()]++
	version := sm.versions[execCtx.ExecutionID()]
	sm.mu.Unlock()

	cp := &store.Checkpoint{
		ID:          "checkpoint_" + uuid.New().String(),
		ExecutionID: execCtx.ExecutionID(),
		Trigger:     string(trigger),
		NodeID:      nodeID,
		State:       execCtx.Snapshot(),
		Timestamp:   time.Now(),
		Version:     version,
	}
	if err := sm.store.Save(ctx, cp); err != nil {
		sm.logger.Error("checkpoint save failed (execution %s, trigger %s): %v",
			execCtx.ExecutionID(), trigger, err)
		return fmt.Errorf("checkpoint on %s failed: %w", trigger, err)
	}
	sm.logger.Debug("checkpoint %s saved (execution %s, trigger %s)",
		cp.ID, execCtx.ExecutionID(), trigger)
	return nil
}

// History returns the recorded events for one execution, in order.
func (sm *StateManager) History(executionID string) []HistoryEvent {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var out []HistoryEvent
	for _, e := range sm.history {
		if e.ExecutionID == executionID {
			out = append(out, e)
		}
	}
	return out
}

// ExecutionStats summarizes one run as derived from history.
type ExecutionStats struct {
	ExecutionID string
	Status      string
	Duration    time.Duration
	NodeCount   int
	EdgeCount   int
}

// Stats derives per-run statistics from the history of one execution.
func (sm *StateManager) Stats(executionID string) ExecutionStats {
	events := sm.History(executionID)

	stats := ExecutionStats{ExecutionID: executionID, Status: StatusRunning}
	var started, ended time.Time
	for _, e := range events {
		switch e.Type {
		case EventInitialized:
			started = e.Timestamp
		case EventNodeExecuted:
			stats.NodeCount++
		case EventEdgeEvaluated:
			stats.EdgeCount++
		case EventCompleted:
			stats.Status = StatusCompleted
			ended = e.Timestamp
		case EventFailed:
			stats.Status = StatusFailed
			ended = e.Timestamp
		}
	}
	if !started.IsZero() && !ended.IsZero() {
		stats.Duration = ended.Sub(started)
	}
	return stats
}

// AggregateStats summarizes all runs this state manager has seen.
type AggregateStats struct {
	Total           int
	Succeeded       int
	Failed          int
	Running         int
	AverageDuration time.Duration
}

// Aggregate groups history by execution ID and derives cross-run counts and
// the average duration of finished runs.
func (sm *StateManager) Aggregate() AggregateStats {
	sm.mu.Lock()
	ids := make(map[string]struct{})
	for _, e := range sm.history {
		ids[e.ExecutionID] = struct{}{}
	}
	sm.mu.Unlock()

	var agg AggregateStats
	var totalDuration time.Duration
	var finished int
	for id := range ids {
		stats := sm.Stats(id)
		agg.Total++
		switch stats.Status {
		case StatusCompleted:
			agg.Succeeded++
		case StatusFailed:
			agg.Failed++
		default:
			agg.Running++
		}
		if stats.Status != StatusRunning {
			totalDuration += stats.Duration
			finished++
		}
	}
	if finished > 0 {
		agg.AverageDuration = totalDuration / time.Duration(finished)
	}
	return agg
}
