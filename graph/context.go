package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionContext is the mutable state of one graph run: which nodes have
// executed, their results, edge evaluation results, and caller variables and
// metadata. A context is exclusively owned by its run; the conditional
// strategy's parallel branching hands each branch its own Clone so branches
// can never alias each other's state.
//
// The internal lock exists because the parallel strategy records results from
// concurrent goroutines. Callers never need to lock anything themselves.
type ExecutionContext struct {
	mu sync.RWMutex

	executionID string
	graph       *Graph
	input       any
	startTime   time.Time

	executedNodes map[string]struct{}
	nodeResults   map[string]any
	edgeResults   map[string]bool
	variables     map[string]any
	metadata      map[string]any
}

// NewExecutionContext creates a fresh context for one run of the graph.
func NewExecutionContext(g *Graph, input any) *ExecutionContext {
	return &ExecutionContext{
		executionID:   uuid.New().String(),
		graph:         g,
		input:         input,
		startTime:     time.Now(),
		executedNodes: make(map[string]struct{}),
		nodeResults:   make(map[string]any),
		edgeResults:   make(map[string]bool),
		variables:     make(map[string]any),
		metadata:      make(map[string]any),
	}
}

// ExecutionID returns the unique identifier of this run.
func (c *ExecutionContext) ExecutionID() string { return c.executionID }

// Graph returns the graph this run executes.
func (c *ExecutionContext) Graph() *Graph { return c.graph }

// Input returns the input value the run was started with.
func (c *ExecutionContext) Input() any { return c.input }

// StartTime returns when the run was created.
func (c *ExecutionContext) StartTime() time.Time { return c.startTime }

// Elapsed returns the time since the run started.
func (c *ExecutionContext) Elapsed() time.Duration { return time.Since(c.startTime) }

// MarkNodeExecuted records that nodeID has run.
func (c *ExecutionContext) MarkNodeExecuted(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executedNodes[nodeID] = struct{}{}
}

// IsNodeExecuted reports whether nodeID has run.
func (c *ExecutionContext) IsNodeExecuted(nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.executedNodes[nodeID]
	return ok
}

// ExecutedNodes returns the IDs of all executed nodes, sorted.
func (c *ExecutionContext) ExecutedNodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.executedNodes))
	for id := range c.executedNodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExecutedCount returns how many nodes have run.
func (c *ExecutionContext) ExecutedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.executedNodes)
}

// SetNodeResult records the result produced by nodeID.
func (c *ExecutionContext) SetNodeResult(nodeID string, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodeResults[nodeID] = result
}

// NodeResult returns the recorded result for nodeID.
func (c *ExecutionContext) NodeResult(nodeID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.nodeResults[nodeID]
	return res, ok
}

// SetEdgeResult records the boolean outcome of evaluating edgeID.
func (c *ExecutionContext) SetEdgeResult(edgeID string, result bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edgeResults[edgeID] = result
}

// EdgeResult returns the recorded outcome for edgeID.
func (c *ExecutionContext) EdgeResult(edgeID string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.edgeResults[edgeID]
	return res, ok
}

// SetVariable stores a named variable.
func (c *ExecutionContext) SetVariable(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// Variable returns a named variable.
func (c *ExecutionContext) Variable(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// HasVariable reports whether a variable is set.
func (c *ExecutionContext) HasVariable(name string) bool {
	_, ok := c.Variable(name)
	return ok
}

// DeleteVariable removes a variable.
func (c *ExecutionContext) DeleteVariable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.variables, name)
}

// Variables returns a copy of all variables.
func (c *ExecutionContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// SetMetadata stores a metadata entry.
func (c *ExecutionContext) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Metadata returns a metadata entry.
func (c *ExecutionContext) Metadata(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// HasMetadata reports whether a metadata entry is set.
func (c *ExecutionContext) HasMetadata(key string) bool {
	_, ok := c.Metadata(key)
	return ok
}

// DeleteMetadata removes a metadata entry.
func (c *ExecutionContext) DeleteMetadata(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metadata, key)
}

// AllMetadata returns a copy of all metadata.
func (c *ExecutionContext) AllMetadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// Clone returns an independent deep copy of the context. The clone keeps the
// same execution ID, graph reference, input, and start time, but owns fresh
// copies of every map, so mutations on either side are invisible to the
// other. Used when the conditional strategy forks parallel branches.
func (c *ExecutionContext) Clone() *ExecutionContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &ExecutionContext{
		executionID:   c.executionID,
		graph:         c.graph,
		input:         c.input,
		startTime:     c.startTime,
		executedNodes: make(map[string]struct{}, len(c.executedNodes)),
		nodeResults:   make(map[string]any, len(c.nodeResults)),
		edgeResults:   make(map[string]bool, len(c.edgeResults)),
		variables:     make(map[string]any, len(c.variables)),
		metadata:      make(map[string]any, len(c.metadata)),
	}
	for id := range c.executedNodes {
		clone.executedNodes[id] = struct{}{}
	}
	for id, res := range c.nodeResults {
		clone.nodeResults[id] = deepCopyValue(res)
	}
	for id, res := range c.edgeResults {
		clone.edgeResults[id] = res
	}
	for k, v := range c.variables {
		clone.variables[k] = deepCopyValue(v)
	}
	for k, v := range c.metadata {
		clone.metadata[k] = deepCopyValue(v)
	}
	return clone
}

// Merge folds another context's state into this one. Union semantics: the
// other context's entries win on conflict.
func (c *ExecutionContext) Merge(other *ExecutionContext) {
	if other == nil || other == c {
		return
	}

	other.mu.RLock()
	defer other.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range other.executedNodes {
		c.executedNodes[id] = struct{}{}
	}
	for id, res := range other.nodeResults {
		c.nodeResults[id] = res
	}
	for id, res := range other.edgeResults {
		c.edgeResults[id] = res
	}
	for k, v := range other.variables {
		c.variables[k] = v
	}
	for k, v := range other.metadata {
		c.metadata[k] = v
	}
}

// ContextSnapshot is the checkpoint wire shape of an execution context.
// Custom functions bound into variables do not survive serialization; they
// are skipped when marshaling.
type ContextSnapshot struct {
	ExecutionID   string          `json:"execution_id"`
	GraphID       string          `json:"graph_id"`
	Input         any             `json:"input"`
	StartTime     time.Time       `json:"start_time"`
	ExecutedNodes []string        `json:"executed_nodes"`
	NodeResults   map[string]any  `json:"node_results"`
	EdgeResults   map[string]bool `json:"edge_results"`
	Variables     map[string]any  `json:"variables"`
	Metadata      map[string]any  `json:"metadata"`
}

// Snapshot captures the current state as a ContextSnapshot.
func (c *ExecutionContext) Snapshot() *ContextSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &ContextSnapshot{
		ExecutionID:   c.executionID,
		Input:         c.input,
		StartTime:     c.startTime,
		ExecutedNodes: make([]string, 0, len(c.executedNodes)),
		NodeResults:   make(map[string]any, len(c.nodeResults)),
		EdgeResults:   make(map[string]bool, len(c.edgeResults)),
		Variables:     make(map[string]any, len(c.variables)),
		Metadata:      make(map[string]any, len(c.metadata)),
	}
	if c.graph != nil {
		snap.GraphID = c.graph.ID
	}
	for id := range c.executedNodes {
		snap.ExecutedNodes = append(snap.ExecutedNodes, id)
	}
	sort.Strings(snap.ExecutedNodes)
	for id, res := range c.nodeResults {
		snap.NodeResults[id] = res
	}
	for id, res := range c.edgeResults {
		snap.EdgeResults[id] = res
	}
	for k, v := range c.variables {
		if isSerializable(v) {
			snap.Variables[k] = v
		}
	}
	for k, v := range c.metadata {
		snap.Metadata[k] = v
	}
	return snap
}

// ToJSON serializes the context to its checkpoint wire shape.
func (c *ExecutionContext) ToJSON() ([]byte, error) {
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution context: %w", err)
	}
	return data, nil
}

// RestoreExecutionContext reconstructs a context from checkpoint JSON. The
// graph is supplied by the caller; only the run state travels on the wire.
func RestoreExecutionContext(g *Graph, data []byte) (*ExecutionContext, error) {
	var snap ContextSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
	}
	return FromSnapshot(g, &snap), nil
}

// FromSnapshot rebuilds a context from a decoded snapshot.
func FromSnapshot(g *Graph, snap *ContextSnapshot) *ExecutionContext {
	c := &ExecutionContext{
		executionID:   snap.ExecutionID,
		graph:         g,
		input:         snap.Input,
		startTime:     snap.StartTime,
		executedNodes: make(map[string]struct{}, len(snap.ExecutedNodes)),
		nodeResults:   make(map[string]any, len(snap.NodeResults)),
		edgeResults:   make(map[string]bool, len(snap.EdgeResults)),
		variables:     make(map[string]any, len(snap.Variables)),
		metadata:      make(map[string]any, len(snap.Metadata)),
	}
	for _, id := range snap.ExecutedNodes {
		c.executedNodes[id] = struct{}{}
	}
	for id, res := range snap.NodeResults {
		c.nodeResults[id] = res
	}
	for id, res := range snap.EdgeResults {
		c.edgeResults[id] = res
	}
	for k, v := range snap.Variables {
		c.variables[k] = v
	}
	for k, v := range snap.Metadata {
		c.metadata[k] = v
	}
	return c
}

// ContextSummary is a debug view of a run's progress.
type ContextSummary struct {
	ExecutionID   string
	ExecutedNodes int
	TotalNodes    int
	NodeResults   map[string]any
	EdgeResults   map[string]bool
	Variables     []string
	Elapsed       time.Duration
}

// Summary returns a snapshot of progress for logging and debugging.
func (c *ExecutionContext) Summary() ContextSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	if c.graph != nil {
		total = len(c.graph.Nodes)
	}
	s := ContextSummary{
		ExecutionID:   c.executionID,
		ExecutedNodes: len(c.executedNodes),
		TotalNodes:    total,
		NodeResults:   make(map[string]any, len(c.nodeResults)),
		EdgeResults:   make(map[string]bool, len(c.edgeResults)),
		Elapsed:       time.Since(c.startTime),
	}
	for id, res := range c.nodeResults {
		s.NodeResults[id] = res
	}
	for id, res := range c.edgeResults {
		s.EdgeResults[id] = res
	}
	for name := range c.variables {
		s.Variables = append(s.Variables, name)
	}
	sort.Strings(s.Variables)
	return s
}

// deepCopyValue copies nested maps and slices so a cloned context cannot
// alias the original's containers. Scalars and opaque values are shared.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = deepCopyValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = deepCopyValue(nested)
		}
		return out
	default:
		return v
	}
}

// isSerializable filters values that cannot travel through JSON, such as the
// callables bound for CustomCondition.
func isSerializable(v any) bool {
	switch v.(type) {
	case CustomConditionFunc, func(map[string]any, *ExecutionContext) (bool, error):
		return false
	}
	_, err := json.Marshal(v)
	return err == nil
}
