package graph

import "context"

// Strategy drives one traversal of a graph. Strategies own no state of their
// own beyond configuration; all run state lives in the execution context and
// all side effects flow through the executor.
type Strategy interface {
	// Name identifies the strategy in logs and metadata.
	Name() string

	// Execute traverses the graph, executing nodes through the executor,
	// and returns the run's result. Any node or evaluator error aborts
	// the traversal.
	Execute(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor) (any, error)
}

// canExecuteNode reports whether a node's incoming edges all evaluate true.
// A node with no incoming edges can always execute. Shared by the strategies
// that gate entry on edge conditions rather than the executor's full
// readiness check.
func canExecuteNode(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor, nodeID string) (bool, error) {
	for _, edge := range execCtx.Graph().IncomingEdges(nodeID) {
		ok, err := exec.EvaluateEdge(ctx, edge, execCtx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
