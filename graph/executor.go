package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/flowgraph/log"
	"github.com/flowgraph/flowgraph/store"
	"github.com/flowgraph/flowgraph/store/memory"
)

// NodeExecutor runs one kind of node. Implementations live outside the
// engine (an LLM caller, a tool invoker, a timer); the engine only resolves
// them by node type and propagates whatever they return. Executors may block
// for arbitrarily long; they receive the run's context.Context and should
// honor its cancellation and any per-node timeout configuration themselves.
type NodeExecutor interface {
	Execute(ctx context.Context, node *Node, execCtx *ExecutionContext) (any, error)
}

// NodeExecutorFunc adapts a function to the NodeExecutor interface.
type NodeExecutorFunc func(ctx context.Context, node *Node, execCtx *ExecutionContext) (any, error)

// Execute calls the function.
func (f NodeExecutorFunc) Execute(ctx context.Context, node *Node, execCtx *ExecutionContext) (any, error) {
	return f(ctx, node, execCtx)
}

// ExecutorRegistry maps node types to their executors. Registries are
// constructed and injected explicitly so runs stay test-isolatable; there is
// no process-wide registry.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[NodeType]NodeExecutor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[NodeType]NodeExecutor)}
}

// Register binds an executor to a node type, replacing any previous binding.
func (r *ExecutorRegistry) Register(t NodeType, executor NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[t] = executor
}

// RegisterFunc binds a plain function to a node type.
func (r *ExecutorRegistry) RegisterFunc(t NodeType, fn NodeExecutorFunc) {
	r.Register(t, fn)
}

// Resolve returns the executor for a node type.
func (r *ExecutorRegistry) Resolve(t NodeType) (NodeExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[t]
	return ex, ok
}

// GraphExecutor drives one graph run under a traversal strategy, funneling
// every state change through the StateManager.
type GraphExecutor struct {
	registry   *ExecutorRegistry
	state      *StateManager
	conditions *ConditionEvaluator
	strategy   Strategy
	logger     log.Logger
}

// ExecutorOption configures a GraphExecutor.
type ExecutorOption func(*GraphExecutor)

// WithStrategy pins the traversal strategy instead of auto-selecting from
// node metadata. This is the only way to get the conditional strategy.
func WithStrategy(s Strategy) ExecutorOption {
	return func(e *GraphExecutor) { e.strategy = s }
}

// WithStateManager supplies the state manager (and through it, the
// checkpoint store and policy).
func WithStateManager(sm *StateManager) ExecutorOption {
	return func(e *GraphExecutor) { e.state = sm }
}

// WithCheckpointStore is shorthand for a default-policy state manager over
// the given store.
func WithCheckpointStore(st store.CheckpointStore) ExecutorOption {
	return func(e *GraphExecutor) { e.state = NewStateManager(st) }
}

// WithLogger sets the executor's logger.
func WithLogger(logger log.Logger) ExecutorOption {
	return func(e *GraphExecutor) { e.logger = logger }
}

// NewGraphExecutor creates an executor resolving node work from registry.
// By default it checkpoints to an in-memory store under the default policy
// and logs nowhere.
func NewGraphExecutor(registry *ExecutorRegistry, opts ...ExecutorOption) *GraphExecutor {
	e := &GraphExecutor{
		registry:   registry,
		conditions: NewConditionEvaluator(),
		logger:     log.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.state == nil {
		e.state = NewStateManager(memory.NewMemoryCheckpointStore())
	}
	return e
}

// StateManager returns the executor's state manager, for history and stats.
func (e *GraphExecutor) StateManager() *StateManager { return e.state }

// Conditions returns the executor's condition evaluator.
func (e *GraphExecutor) Conditions() *ConditionEvaluator { return e.conditions }

// Execute runs the graph with the given input. It creates the execution
// context, initializes it, drives the selected strategy, and records final
// or error state. Any node or evaluator error aborts the whole run; the
// context's recorded results remain available through checkpoints for
// diagnostics, but there is no partial-success return.
func (e *GraphExecutor) Execute(ctx context.Context, g *Graph, input any) (any, error) {
	result, _, err := e.ExecuteWithContext(ctx, g, input)
	return result, err
}

// ExecuteWithContext is Execute but also returns the execution context, so
// callers can inspect variables, results, and metadata after the run. The
// context is returned even when execution fails, for diagnostics; it is nil
// only when the run could not start.
func (e *GraphExecutor) ExecuteWithContext(ctx context.Context, g *Graph, input any) (any, *ExecutionContext, error) {
	if g == nil {
		return nil, nil, ErrNilGraph
	}

	execCtx := NewExecutionContext(g, input)
	if err := e.state.Initialize(ctx, execCtx); err != nil {
		return nil, nil, err
	}

	strategy := e.strategy
	if strategy == nil {
		strategy = e.selectStrategy(g)
	}
	execCtx.SetMetadata("strategy", strategy.Name())
	e.logger.Info("execution %s started (graph %s, strategy %s)",
		execCtx.ExecutionID(), g.ID, strategy.Name())

	result, err := strategy.Execute(ctx, execCtx, e)
	if err != nil {
		e.logger.Error("execution %s failed: %v", execCtx.ExecutionID(), err)
		if saveErr := e.state.SaveErrorState(ctx, execCtx, err); saveErr != nil {
			e.logger.Error("execution %s: error-state checkpoint failed: %v",
				execCtx.ExecutionID(), saveErr)
		}
		return nil, execCtx, err
	}

	if err := e.state.SaveFinalState(ctx, execCtx, result); err != nil {
		return nil, execCtx, err
	}
	e.logger.Info("execution %s completed (%d nodes in %s)",
		execCtx.ExecutionID(), execCtx.ExecutedCount(), execCtx.Elapsed())
	return result, execCtx, nil
}

// selectStrategy picks parallel if any node hints metadata.parallel == true,
// otherwise sequential. Conditional is never auto-selected.
func (e *GraphExecutor) selectStrategy(g *Graph) Strategy {
	for _, node := range g.Nodes {
		if p, ok := node.Metadata["parallel"].(bool); ok && p {
			return NewParallelStrategy()
		}
	}
	return NewSequentialStrategy()
}

// ExecuteNode resolves the node's executor, runs it, and forwards the result
// to the state manager. Strategies call this for every node they schedule.
func (e *GraphExecutor) ExecuteNode(ctx context.Context, node *Node, execCtx *ExecutionContext) (any, error) {
	executor, ok := e.registry.Resolve(node.Type)
	if !ok {
		return nil, &NodeExecutionError{
			NodeID: node.ID,
			Err:    fmt.Errorf("no executor registered for node type %q", node.Type),
		}
	}

	e.logger.Debug("executing node %s (type %s)", node.ID, node.Type)
	result, err := executor.Execute(ctx, node, execCtx)
	if err != nil {
		return nil, &NodeExecutionError{NodeID: node.ID, Err: err}
	}

	if err := e.state.UpdateNodeState(ctx, execCtx, node.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// EvaluateEdge evaluates the edge's condition and forwards the boolean to
// the state manager.
func (e *GraphExecutor) EvaluateEdge(ctx context.Context, edge *Edge, execCtx *ExecutionContext) (bool, error) {
	result, err := e.conditions.Evaluate(edge, execCtx)
	if err != nil {
		return false, err
	}
	if err := e.state.UpdateEdgeState(ctx, execCtx, edge.ID, result); err != nil {
		return false, err
	}
	return result, nil
}

// ExecutableNodes returns the IDs of nodes that may run right now: not yet
// executed, every incoming edge's source already executed, and every
// incoming edge's condition true. A node with no incoming edges is
// immediately executable.
func (e *GraphExecutor) ExecutableNodes(ctx context.Context, execCtx *ExecutionContext) ([]string, error) {
	g := execCtx.Graph()
	var ready []string

	for _, nodeID := range g.NodeIDs() {
		if execCtx.IsNodeExecuted(nodeID) {
			continue
		}

		executable := true
		for _, edge := range g.IncomingEdges(nodeID) {
			if !execCtx.IsNodeExecuted(edge.From) {
				executable = false
				break
			}
			ok, err := e.EvaluateEdge(ctx, edge, execCtx)
			if err != nil {
				return nil, err
			}
			if !ok {
				executable = false
				break
			}
		}
		if executable {
			ready = append(ready, nodeID)
		}
	}
	return ready, nil
}

// IsExecutionComplete reports whether no remaining node is executable.
func (e *GraphExecutor) IsExecutionComplete(ctx context.Context, execCtx *ExecutionContext) (bool, error) {
	ready, err := e.ExecutableNodes(ctx, execCtx)
	if err != nil {
		return false, err
	}
	return len(ready) == 0, nil
}

// ExecutionPath reconstructs the order nodes were reached by walking forward
// from the graph's start nodes, following edges and recording nodes found in
// the executed set. A visited guard protects the walk against cycles.
func (e *GraphExecutor) ExecutionPath(execCtx *ExecutionContext) []string {
	g := execCtx.Graph()
	visited := make(map[string]bool, len(g.Nodes))
	var path []string

	var walk func(nodeID string)
	walk = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		visited[nodeID] = true
		if execCtx.IsNodeExecuted(nodeID) {
			path = append(path, nodeID)
		}
		for _, edge := range g.OutgoingEdges(nodeID) {
			walk(edge.To)
		}
	}
	for _, start := range g.StartNodes() {
		walk(start)
	}
	return path
}

// ValidateGraph checks the structural invariants the engine relies on:
// non-empty node set, edges referencing existing nodes, acyclicity, and no
// node unreachable from the start nodes. Callers must not execute a graph
// that fails validation.
func (e *GraphExecutor) ValidateGraph(g *Graph) ValidationResult {
	return validateGraphStructure(g)
}

func validateGraphStructure(g *Graph) ValidationResult {
	var errs []string

	if g == nil {
		return ValidationResult{Errors: []string{ErrNilGraph.Error()}}
	}
	if len(g.Nodes) == 0 {
		errs = append(errs, ErrEmptyGraph.Error())
		return ValidationResult{Errors: errs}
	}

	for _, edgeID := range sortedEdgeIDs(g) {
		edge := g.Edges[edgeID]
		if _, ok := g.Nodes[edge.From]; !ok {
			errs = append(errs, fmt.Sprintf("edge %s references missing source node %s", edge.ID, edge.From))
		}
		if _, ok := g.Nodes[edge.To]; !ok {
			errs = append(errs, fmt.Sprintf("edge %s references missing target node %s", edge.ID, edge.To))
		}
	}
	if len(errs) > 0 {
		return ValidationResult{Errors: errs}
	}

	if cycle := findCycle(g); cycle != "" {
		errs = append(errs, fmt.Sprintf("graph contains a cycle through node %s", cycle))
	}

	// Every node must be reachable by forward traversal from a start node.
	starts := g.StartNodes()
	reached := make(map[string]bool, len(g.Nodes))
	var visit func(nodeID string)
	visit = func(nodeID string) {
		if reached[nodeID] {
			return
		}
		reached[nodeID] = true
		for _, edge := range g.OutgoingEdges(nodeID) {
			visit(edge.To)
		}
	}
	for _, start := range starts {
		visit(start)
	}
	for _, nodeID := range g.NodeIDs() {
		if !reached[nodeID] {
			errs = append(errs, fmt.Sprintf("node %s is unreachable from any start node", nodeID))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// findCycle runs a depth-first search with a recursion stack and returns a
// node on the first cycle found, or "" if the graph is acyclic. Reachability
// alone cannot distinguish a back edge from a cross edge; the stack can.
func findCycle(g *Graph) string {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(g.Nodes))

	var visit func(nodeID string) string
	visit = func(nodeID string) string {
		state[nodeID] = inStack
		for _, edge := range g.OutgoingEdges(nodeID) {
			switch state[edge.To] {
			case inStack:
				return edge.To
			case unvisited:
				if c := visit(edge.To); c != "" {
					return c
				}
			}
		}
		state[nodeID] = done
		return ""
	}

	for _, nodeID := range g.NodeIDs() {
		if state[nodeID] == unvisited {
			if c := visit(nodeID); c != "" {
				return c
			}
		}
	}
	return ""
}

func sortedEdgeIDs(g *Graph) []string {
	ids := make([]string, 0, len(g.Edges))
	for id := range g.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
