package graph

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

// ParallelStrategy executes the graph in waves: it repeatedly computes the
// ready frontier (unexecuted nodes whose every dependency is satisfied),
// fans the whole frontier out concurrently, waits for all of it, and
// recomputes. A node is guaranteed to start only after its own predecessors
// completed; there is no ordering among mutually independent nodes, and a
// failure anywhere fails the whole run.
//
// By default the frontier is condition-aware, re-evaluated through the
// executor each wave. WithStaticDependencies switches to a dependency map
// computed once up front from edge shape alone, ignoring conditions.
// WithMaxConcurrency bounds how many nodes run at once within a wave.
type ParallelStrategy struct {
	maxConcurrency int
	static         bool
}

// ParallelOption configures a ParallelStrategy.
type ParallelOption func(*ParallelStrategy)

// WithMaxConcurrency caps simultaneously-running nodes. Zero or negative
// means unbounded.
func WithMaxConcurrency(n int) ParallelOption {
	return func(s *ParallelStrategy) { s.maxConcurrency = n }
}

// WithStaticDependencies drives scheduling from a dependency map computed
// once from the edges, instead of re-evaluating edge conditions each wave.
func WithStaticDependencies() ParallelOption {
	return func(s *ParallelStrategy) { s.static = true }
}

// NewParallelStrategy creates a parallel strategy.
func NewParallelStrategy(opts ...ParallelOption) *ParallelStrategy {
	s := &ParallelStrategy{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "parallel".
func (s *ParallelStrategy) Name() string { return "parallel" }

// Execute runs the graph wave by wave until no node is ready.
func (s *ParallelStrategy) Execute(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor) (any, error) {
	if s.static {
		if err := s.executeStatic(ctx, execCtx, exec); err != nil {
			return nil, err
		}
	} else {
		if err := s.executeFrontier(ctx, execCtx, exec); err != nil {
			return nil, err
		}
	}
	return s.collectResult(execCtx), nil
}

func (s *ParallelStrategy) executeFrontier(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor) error {
	for {
		frontier, err := exec.ExecutableNodes(ctx, execCtx)
		if err != nil {
			return err
		}
		if len(frontier) == 0 {
			return nil
		}
		if err := s.executeWave(ctx, execCtx, exec, frontier); err != nil {
			return err
		}
	}
}

// executeStatic schedules from a dependency map built once from the edges.
func (s *ParallelStrategy) executeStatic(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor) error {
	g := execCtx.Graph()
	deps := dependencyMap(g)

	for execCtx.ExecutedCount() < len(g.Nodes) {
		var frontier []string
		for _, nodeID := range g.NodeIDs() {
			if execCtx.IsNodeExecuted(nodeID) {
				continue
			}
			ready := true
			for _, dep := range deps[nodeID] {
				if !execCtx.IsNodeExecuted(dep) {
					ready = false
					break
				}
			}
			if ready {
				frontier = append(frontier, nodeID)
			}
		}
		if len(frontier) == 0 {
			// Remaining nodes depend on each other; validation should
			// have caught the cycle, stop rather than spin.
			return &ValidationError{Reason: "no progress possible; remaining nodes form a cycle"}
		}
		if err := s.executeWave(ctx, execCtx, exec, frontier); err != nil {
			return err
		}
	}
	return nil
}

// executeWave fans out one frontier and waits for every node in it.
func (s *ParallelStrategy) executeWave(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor, frontier []string) error {
	g := execCtx.Graph()

	if s.maxConcurrency > 0 {
		p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(s.maxConcurrency)
		for _, nodeID := range frontier {
			node := g.Nodes[nodeID]
			p.Go(func(ctx context.Context) error {
				_, err := exec.ExecuteNode(ctx, node, execCtx)
				return err
			})
		}
		return p.Wait()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, nodeID := range frontier {
		node := g.Nodes[nodeID]
		eg.Go(func() error {
			_, err := exec.ExecuteNode(egCtx, node, execCtx)
			return err
		})
	}
	return eg.Wait()
}

// collectResult derives the run result from executed end nodes (nodes with
// no outgoing edges): one end node yields its result directly, several yield
// a slice ordered by node ID. End nodes that were never reached because a
// condition held them back are recorded in context metadata under
// "unreached_end_nodes" rather than treated as errors.
func (s *ParallelStrategy) collectResult(execCtx *ExecutionContext) any {
	g := execCtx.Graph()

	var executed []string
	var unreached []string
	for _, nodeID := range g.EndNodes() {
		if execCtx.IsNodeExecuted(nodeID) {
			executed = append(executed, nodeID)
		} else {
			unreached = append(unreached, nodeID)
		}
	}
	sort.Strings(executed)
	if len(unreached) > 0 {
		execCtx.SetMetadata("unreached_end_nodes", unreached)
	}

	switch len(executed) {
	case 0:
		return nil
	case 1:
		result, _ := execCtx.NodeResult(executed[0])
		return result
	default:
		results := make([]any, len(executed))
		for i, nodeID := range executed {
			results[i], _ = execCtx.NodeResult(nodeID)
		}
		return results
	}
}

// dependencyMap inverts the edges into node -> predecessor IDs, sorted.
func dependencyMap(g *Graph) map[string][]string {
	deps := make(map[string][]string, len(g.Nodes))
	for nodeID := range g.Nodes {
		deps[nodeID] = nil
	}
	for _, edge := range g.Edges {
		deps[edge.To] = append(deps[edge.To], edge.From)
	}
	for nodeID := range deps {
		sort.Strings(deps[nodeID])
	}
	return deps
}
