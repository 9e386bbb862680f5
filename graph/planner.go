package graph

import (
	"fmt"
	"sort"
	"time"
)

// ExecutionStep describes one node in an execution plan.
type ExecutionStep struct {
	// NodeID identifies the node this step executes.
	NodeID string

	// Dependencies are the node's predecessors; all must complete first.
	Dependencies []string

	// ParallelGroup is the index of the group this step may run in.
	// Group k may only start after group k-1 has finished.
	ParallelGroup int

	// EstimatedDuration is the planning estimate for this node.
	EstimatedDuration time.Duration
}

// ExecutionPlan is a read-only description of how a graph would execute:
// a valid step order, groups of nodes eligible to run concurrently, the
// critical path, and a duration estimate.
//
// EstimatedDuration is the plain sum over steps. It deliberately ignores any
// speedup from running groups concurrently; treat it as an upper-bound
// estimate, not a prediction.
type ExecutionPlan struct {
	GraphID           string
	Steps             []ExecutionStep
	ParallelGroups    [][]string
	CriticalPath      []string
	EstimatedDuration time.Duration
}

// Default planning estimates per node type, in the absence of an explicit
// timeout property or estimatedDuration metadata.
var defaultDurations = map[NodeType]time.Duration{
	NodeTypeLLM:       5000 * time.Millisecond,
	NodeTypeTool:      2000 * time.Millisecond,
	NodeTypeCondition: 100 * time.Millisecond,
	NodeTypeWait:      1000 * time.Millisecond,
	NodeTypeTransform: 500 * time.Millisecond,
	NodeTypeInput:     100 * time.Millisecond,
	NodeTypeOutput:    100 * time.Millisecond,
}

const fallbackDuration = 1000 * time.Millisecond

// ExecutionPlanner analyzes a graph without executing it. Planning is a
// pure, side-effect-free query; the same graph always yields the same plan.
type ExecutionPlanner struct{}

// NewExecutionPlanner creates a planner.
func NewExecutionPlanner() *ExecutionPlanner {
	return &ExecutionPlanner{}
}

// CreateExecutionPlan validates the graph and derives its plan. It fails
// with a ValidationError if the graph is empty, has edges referencing
// missing nodes, or contains a cycle.
func (p *ExecutionPlanner) CreateExecutionPlan(g *Graph) (*ExecutionPlan, error) {
	if g == nil {
		return nil, &ValidationError{Reason: ErrNilGraph.Error()}
	}
	if len(g.Nodes) == 0 {
		return nil, &ValidationError{Reason: ErrEmptyGraph.Error()}
	}
	for _, edgeID := range sortedEdgeIDs(g) {
		edge := g.Edges[edgeID]
		if _, ok := g.Nodes[edge.From]; !ok {
			return nil, &ValidationError{Reason: "edge references missing source node " + edge.From, EdgeID: edge.ID}
		}
		if _, ok := g.Nodes[edge.To]; !ok {
			return nil, &ValidationError{Reason: "edge references missing target node " + edge.To, EdgeID: edge.ID}
		}
	}
	if cycle := findCycle(g); cycle != "" {
		return nil, &ValidationError{Reason: "graph contains a cycle", NodeID: cycle}
	}

	deps := dependencyMap(g)
	groups, err := parallelGroups(g, deps)
	if err != nil {
		return nil, err
	}

	durations := make(map[string]time.Duration, len(g.Nodes))
	for nodeID, node := range g.Nodes {
		durations[nodeID] = estimateDuration(node)
	}

	steps := buildSteps(g, deps, groups, durations)

	plan := &ExecutionPlan{
		GraphID:        g.ID,
		Steps:          steps,
		ParallelGroups: groups,
		CriticalPath:   criticalPath(g, deps, durations),
	}
	for _, step := range steps {
		plan.EstimatedDuration += step.EstimatedDuration
	}
	return plan, nil
}

// parallelGroups repeatedly collects every unprocessed node whose
// dependencies are all processed. The progress guard turns a cycle that
// slipped past validation into an error instead of an infinite loop.
func parallelGroups(g *Graph, deps map[string][]string) ([][]string, error) {
	processed := make(map[string]bool, len(g.Nodes))
	var groups [][]string

	for len(processed) < len(g.Nodes) {
		var group []string
		for _, nodeID := range g.NodeIDs() {
			if processed[nodeID] {
				continue
			}
			ready := true
			for _, dep := range deps[nodeID] {
				if !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				group = append(group, nodeID)
			}
		}
		if len(group) == 0 {
			return nil, &ValidationError{Reason: "no progress grouping nodes; graph contains a cycle"}
		}
		for _, nodeID := range group {
			processed[nodeID] = true
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// buildSteps creates one step per node and re-sorts them topologically so
// the step order itself is a valid execution order.
func buildSteps(g *Graph, deps map[string][]string, groups [][]string, durations map[string]time.Duration) []ExecutionStep {
	groupOf := make(map[string]int, len(g.Nodes))
	for i, group := range groups {
		for _, nodeID := range group {
			groupOf[nodeID] = i
		}
	}

	steps := make([]ExecutionStep, 0, len(g.Nodes))
	placed := make(map[string]bool, len(g.Nodes))
	for len(steps) < len(g.Nodes) {
		for _, nodeID := range g.NodeIDs() {
			if placed[nodeID] {
				continue
			}
			ready := true
			for _, dep := range deps[nodeID] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			placed[nodeID] = true
			steps = append(steps, ExecutionStep{
				NodeID:            nodeID,
				Dependencies:      append([]string(nil), deps[nodeID]...),
				ParallelGroup:     groupOf[nodeID],
				EstimatedDuration: durations[nodeID],
			})
		}
	}
	return steps
}

// criticalPath runs a forward CPM pass (earliest start = max of predecessor
// finishes) and then traces backward from the node with the greatest
// earliest finish, at each step following the predecessor whose finish time
// matches the current node's start.
func criticalPath(g *Graph, deps map[string][]string, durations map[string]time.Duration) []string {
	earliestStart := make(map[string]time.Duration, len(g.Nodes))
	earliestFinish := make(map[string]time.Duration, len(g.Nodes))

	var computeFinish func(nodeID string) time.Duration
	computeFinish = func(nodeID string) time.Duration {
		if f, ok := earliestFinish[nodeID]; ok {
			return f
		}
		var start time.Duration
		for _, dep := range deps[nodeID] {
			if f := computeFinish(dep); f > start {
				start = f
			}
		}
		earliestStart[nodeID] = start
		earliestFinish[nodeID] = start + durations[nodeID]
		return earliestFinish[nodeID]
	}

	var end string
	var endFinish time.Duration
	for _, nodeID := range g.NodeIDs() {
		if f := computeFinish(nodeID); f > endFinish || end == "" {
			end = nodeID
			endFinish = f
		}
	}
	if end == "" {
		return nil
	}

	// Trace backward along matching finish times.
	path := []string{end}
	current := end
	for len(deps[current]) > 0 {
		start := earliestStart[current]
		var chosen string
		for _, dep := range deps[current] {
			if earliestFinish[dep] == start {
				chosen = dep
				break
			}
		}
		if chosen == "" {
			break
		}
		path = append(path, chosen)
		current = chosen
	}

	// Reverse into root-to-leaf order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// estimateDuration derives a node's planning estimate: the type default,
// capped by an explicit "timeout" property, overridden entirely by an
// explicit "estimatedDuration" metadata value. Both are milliseconds.
func estimateDuration(node *Node) time.Duration {
	duration, ok := defaultDurations[node.Type]
	if !ok {
		duration = fallbackDuration
	}

	if raw, ok := node.Properties["timeout"]; ok {
		if ms, ok := toFloat(raw); ok && ms > 0 {
			if limit := time.Duration(ms) * time.Millisecond; limit < duration {
				duration = limit
			}
		}
	}
	if raw, ok := node.Metadata["estimatedDuration"]; ok {
		if ms, ok := toFloat(raw); ok && ms >= 0 {
			duration = time.Duration(ms) * time.Millisecond
		}
	}
	return duration
}

// ValidatePlan independently checks a plan's internal consistency: every
// dependency must reference a step in the plan, and the dependency relation
// must be acyclic. Plans may be hand-constructed by callers, so this does
// not assume CreateExecutionPlan produced them.
func (p *ExecutionPlanner) ValidatePlan(plan *ExecutionPlan) error {
	if plan == nil || len(plan.Steps) == 0 {
		return &PlanValidationError{Reason: "plan has no steps"}
	}

	byID := make(map[string][]string, len(plan.Steps))
	for _, step := range plan.Steps {
		if _, dup := byID[step.NodeID]; dup {
			return &PlanValidationError{StepID: step.NodeID, Reason: "duplicate step"}
		}
		byID[step.NodeID] = step.Dependencies
	}
	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := byID[dep]; !ok {
				return &PlanValidationError{
					StepID: step.NodeID,
					Reason: fmt.Sprintf("dependency %q is not a step in the plan", dep),
				}
			}
		}
	}

	// Cycle check over the step dependency relation.
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(byID))
	var visit func(id string) error
	visit = func(id string) error {
		state[id] = inStack
		for _, dep := range byID[id] {
			switch state[dep] {
			case inStack:
				return &PlanValidationError{StepID: id, Reason: "circular dependency through " + dep}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
