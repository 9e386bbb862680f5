package graph

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BranchingStrategy is the policy applied when a node has more than one
// condition-satisfying outgoing edge.
type BranchingStrategy string

const (
	// BranchFirst follows only the first valid edge (by edge ID order).
	BranchFirst BranchingStrategy = "first"

	// BranchAll walks every valid edge's subtree sequentially.
	BranchAll BranchingStrategy = "all"

	// BranchParallel forks one independent context copy per valid edge and
	// runs the branches concurrently. Each branch's result is stored on the
	// parent context as the variable "branch_<edgeID>"; branch node and
	// edge state is never merged back, so branches cannot interfere.
	BranchParallel BranchingStrategy = "parallel"

	// BranchWeighted picks one valid edge by roulette-wheel selection
	// proportional to edge weight (default weight 1).
	BranchWeighted BranchingStrategy = "weighted"
)

// branchingStrategyVar is the context variable that overrides the default
// branching strategy.
const branchingStrategyVar = "branching_strategy"

// ConditionalStrategy walks the graph depth-first, letting edge conditions
// steer the traversal. A node with no valid outgoing edges ends its path;
// one valid edge continues serially; several valid edges trigger branching.
// The strategy is never auto-selected; callers opt in via WithStrategy.
type ConditionalStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// ConditionalOption configures a ConditionalStrategy.
type ConditionalOption func(*ConditionalStrategy)

// WithRandSeed seeds weighted branching deterministically, for tests.
func WithRandSeed(seed int64) ConditionalOption {
	return func(s *ConditionalStrategy) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewConditionalStrategy creates a conditional strategy.
func NewConditionalStrategy(opts ...ConditionalOption) *ConditionalStrategy {
	s := &ConditionalStrategy{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Name returns "conditional".
func (s *ConditionalStrategy) Name() string { return "conditional" }

// Execute walks the graph from its start nodes. As with the sequential
// strategy, a single start node returns its walk's result directly and
// multiple start nodes return a map keyed by start node ID.
func (s *ConditionalStrategy) Execute(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor) (any, error) {
	starts := execCtx.Graph().StartNodes()
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

func (s *ConditionalStrategy) executeFrom(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor, nodeID string) (any, error) {
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

	var valid []*Edge
	for _, edge := range execCtx.Graph().OutgoingEdges(nodeID) {
		ok, err := exec.EvaluateEdge(ctx, edge, execCtx)
		if err != nil {
			return nil, err
		}
		if ok {
			valid = append(valid, edge)
		}
	}

	if len(valid) == 0 {
		return result, nil
	}
	if len(valid) == 1 {
		return s.executeFrom(ctx, execCtx, exec, valid[0].To)
	}

	switch s.pickBranching(execCtx, len(valid)) {
	case BranchAll:
		var last any = result
		for _, edge := range valid {
			downstream, err := s.executeFrom(ctx, execCtx, exec, edge.To)
			if err != nil {
				return nil, err
			}
			last = downstream
		}
		return last, nil

	case BranchParallel:
		return s.executeBranchesParallel(ctx, execCtx, exec, valid)

	case BranchWeighted:
		edge := s.pickWeighted(valid)
		return s.executeFrom(ctx, execCtx, exec, edge.To)

	default: // BranchFirst
		return s.executeFrom(ctx, execCtx, exec, valid[0].To)
	}
}

// pickBranching resolves the branching strategy: an explicit
// "branching_strategy" context variable wins, otherwise the default is
// derived from the valid-edge count (1 -> first, 2-3 -> parallel,
// otherwise first).
func (s *ConditionalStrategy) pickBranching(execCtx *ExecutionContext, validEdges int) BranchingStrategy {
	if v, ok := execCtx.Variable(branchingStrategyVar); ok {
		switch bs := BranchingStrategy(fmt.Sprint(v)); bs {
		case BranchFirst, BranchAll, BranchParallel, BranchWeighted:
			return bs
		}
	}
	if validEdges >= 2 && validEdges <= 3 {
		return BranchParallel
	}
	return BranchFirst
}

// executeBranchesParallel forks one cloned context per edge so branches own
// their state exclusively, runs all branches concurrently, and tags each
// branch's result onto the parent as "branch_<edgeID>".
func (s *ConditionalStrategy) executeBranchesParallel(ctx context.Context, execCtx *ExecutionContext, exec *GraphExecutor, edges []*Edge) (any, error) {
	branchResults := make([]any, len(edges))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, edge := range edges {
		i, edge := i, edge
		branchCtx := execCtx.Clone()
		eg.Go(func() error {
			result, err := s.executeFrom(egCtx, branchCtx, exec, edge.To)
			if err != nil {
				return err
			}
			branchResults[i] = result
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	tagged := make(map[string]any, len(edges))
	for i, edge := range edges {
		key := "branch_" + edge.ID
		execCtx.SetVariable(key, branchResults[i])
		tagged[key] = branchResults[i]
	}
	return tagged, nil
}

// pickWeighted selects one edge by roulette wheel over edge weights.
func (s *ConditionalStrategy) pickWeighted(edges []*Edge) *Edge {
	var total float64
	for _, e := range edges {
		total += edgeWeight(e)
	}

	s.mu.Lock()
	r := s.rng.Float64() * total
	s.mu.Unlock()

	for _, e := range edges {
		r -= edgeWeight(e)
		if r < 0 {
			return e
		}
	}
	return edges[len(edges)-1]
}
