package graph_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/graph"
)

func TestExecutionPlanner_LinearPlan(t *testing.T) {
	t.Parallel()

	p := graph.NewExecutionPlanner()
	plan, err := p.CreateExecutionPlan(linearGraph())
	require.NoError(t, err)

	assert.Equal(t, "linear", plan.GraphID)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, plan.ParallelGroups)
	assert.Equal(t, []string{"a", "b", "c"}, plan.CriticalPath)

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "a", plan.Steps[0].NodeID)
	assert.Empty(t, plan.Steps[0].Dependencies)
	assert.Equal(t, 0, plan.Steps[0].ParallelGroup)
	assert.Equal(t, []string{"a"}, plan.Steps[1].Dependencies)
	assert.Equal(t, []string{"b"}, plan.Steps[2].Dependencies)

	// input 100ms + transform 500ms + output 100ms
	assert.Equal(t, 700*time.Millisecond, plan.EstimatedDuration)
}

func TestExecutionPlanner_DiamondPlan(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("diamond", "Diamond")
	g.AddNode(&graph.Node{ID: "a", Type: graph.NodeTypeInput})
	g.AddNode(&graph.Node{ID: "b", Type: graph.NodeTypeLLM})
	g.AddNode(&graph.Node{ID: "c", Type: graph.NodeTypeTool})
	g.AddNode(&graph.Node{ID: "d", Type: graph.NodeTypeOutput})
	g.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "b"})
	g.AddEdge(&graph.Edge{ID: "e2", From: "a", To: "c"})
	g.AddEdge(&graph.Edge{ID: "e3", From: "b", To: "d"})
	g.AddEdge(&graph.Edge{ID: "e4", From: "c", To: "d"})

	p := graph.NewExecutionPlanner()
	plan, err := p.CreateExecutionPlan(g)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, plan.ParallelGroups)

	// The llm branch (5000ms) dominates the tool branch (2000ms).
	assert.Equal(t, []string{"a", "b", "d"}, plan.CriticalPath)

	// Plain sum over all steps, not the critical path length.
	assert.Equal(t, 7200*time.Millisecond, plan.EstimatedDuration)

	for _, step := range plan.Steps {
		if step.NodeID == "d" {
			assert.Equal(t, []string{"b", "c"}, step.Dependencies)
			assert.Equal(t, 2, step.ParallelGroup)
		}
	}
}

func TestExecutionPlanner_DurationOverrides(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("tuned", "Tuned")
	g.AddNode(&graph.Node{ID: "capped", Type: graph.NodeTypeLLM,
		Properties: map[string]any{"timeout": 1500}})
	g.AddNode(&graph.Node{ID: "pinned", Type: graph.NodeTypeTool,
		Metadata: map[string]any{"estimatedDuration": 250}})
	g.AddNode(&graph.Node{ID: "plain", Type: graph.NodeType("custom")})

	p := graph.NewExecutionPlanner()
	plan, err := p.CreateExecutionPlan(g)
	require.NoError(t, err)

	durations := make(map[string]time.Duration)
	for _, step := range plan.Steps {
		durations[step.NodeID] = step.EstimatedDuration
	}

	assert.Equal(t, 1500*time.Millisecond, durations["capped"], "timeout caps the type default")
	assert.Equal(t, 250*time.Millisecond, durations["pinned"], "metadata overrides outright")
	assert.Equal(t, 1000*time.Millisecond, durations["plain"], "unknown types get the fallback")
}

func TestExecutionPlanner_RejectsBadGraphs(t *testing.T) {
	t.Parallel()

	p := graph.NewExecutionPlanner()

	_, err := p.CreateExecutionPlan(nil)
	assert.Error(t, err)

	_, err = p.CreateExecutionPlan(graph.NewGraph("empty", "Empty"))
	var valErr *graph.ValidationError
	require.ErrorAs(t, err, &valErr)

	dangling := graph.NewGraph("dangling", "Dangling")
	dangling.AddNode(&graph.Node{ID: "a", Type: graph.NodeTypeTool})
	dangling.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "ghost"})
	_, err = p.CreateExecutionPlan(dangling)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "e1", valErr.EdgeID)

	cyclic := graph.NewGraph("cyclic", "Cyclic")
	cyclic.AddNode(&graph.Node{ID: "a", Type: graph.NodeTypeTool})
	cyclic.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "a"})
	_, err = p.CreateExecutionPlan(cyclic)
	require.ErrorAs(t, err, &valErr)
}

func TestExecutionPlanner_ValidatePlan(t *testing.T) {
	t.Parallel()

	p := graph.NewExecutionPlanner()

	plan, err := p.CreateExecutionPlan(linearGraph())
	require.NoError(t, err)
	assert.NoError(t, p.ValidatePlan(plan))

	assert.Error(t, p.ValidatePlan(nil))
	assert.Error(t, p.ValidatePlan(&graph.ExecutionPlan{}))

	var planErr *graph.PlanValidationError

	err = p.ValidatePlan(&graph.ExecutionPlan{Steps: []graph.ExecutionStep{
		{NodeID: "a", Dependencies: []string{"ghost"}},
	}})
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, "a", planErr.StepID)

	err = p.ValidatePlan(&graph.ExecutionPlan{Steps: []graph.ExecutionStep{
		{NodeID: "a"},
		{NodeID: "a"},
	}})
	require.ErrorAs(t, err, &planErr)

	err = p.ValidatePlan(&graph.ExecutionPlan{Steps: []graph.ExecutionStep{
		{NodeID: "a", Dependencies: []string{"b"}},
		{NodeID: "b", Dependencies: []string{"a"}},
	}})
	require.ErrorAs(t, err, &planErr)
	assert.Contains(t, planErr.Reason, "circular")
}
