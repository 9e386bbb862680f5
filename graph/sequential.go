package graph

import "context"

// SequentialStrategy walks the graph depth-first from its start nodes,
// finishing each node before the next one starts. Re-entering an
// already-executed node is a no-op, so diamond shapes execute each node
// exactly once.
//
// With a single start node the result is the value of the last node executed
// on that walk. With multiple disconnected start nodes the result is a map
// of start node ID to that walk's result; no walk's result is discarded.
type SequentialStrategy struct{}

// NewSequentialStrategy creates a sequential strategy.
func NewSequentialStrategy() *SequentialStrategy {
	return &SequentialStrategy{}
}

// Name returns "sequential".
func (s *SequentialStrategy) Name() string { return "sequential" }

// Execute runs the graph one node at a time.
func (s *SequentialStrategy) Execute(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor) (any, error) {
	g := execCtx.Graph()
	starts := g.StartNodes()
	if len(starts) == 0 {
		return nil, &ValidationError{Reason: "no start nodes; graph is empty or cyclic"}
	}

	results := make(map[string]any, len(starts))
	for _, start := range starts {
		result, err := s.executeFrom(ctx, execCtx, exec, start)
		if err != nil {
			return nil, err
		}
		results[start] = result
	}

	if len(starts) == 1 {
		return results[starts[0]], nil
	}
	return results, nil
}

// executeFrom executes nodeID and then depth-first-recurses into every
// outgoing edge whose condition holds. It returns the result of the last
// node executed on this walk.
func (s *SequentialStrategy) executeFrom(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor, nodeID string) (any, error) {
	if execCtx.IsNodeExecuted(nodeID) {
		result, _ := execCtx.NodeResult(nodeID)
		return result, nil
	}

	node, ok := execCtx.Graph().Nodes[nodeID]
	if !ok {
		return nil, &ValidationError{Reason: "edge references missing node", NodeID: nodeID}
	}

	result, err := exec.ExecuteNode(ctx, node, execCtx)
	if err != nil {
		return nil, err
	}

	last := result
	for _, edge := range execCtx.Graph().OutgoingEdges(nodeID) {
		ok, err := exec.EvaluateEdge(ctx, edge, execCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		downstream, err := s.executeFrom(ctx, execCtx, exec, edge.To)
		if err != nil {
			return nil, err
		}
		last = downstream
	}
	return last, nil
}
