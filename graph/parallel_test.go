package graph_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/graph"
)

func fanOutGraph() *graph.Graph {
	g := graph.NewGraph("fanout", "Fan Out")
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(&graph.Node{ID: id, Type: graph.NodeTypeTool})
	}
	g.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "b"})
	g.AddEdge(&graph.Edge{ID: "e2", From: "a", To: "c"})
	g.AddEdge(&graph.Edge{ID: "e3", From: "b", To: "d"})
	g.AddEdge(&graph.Edge{ID: "e4", From: "c", To: "d"})
	return g
}

// concurrencyTracker counts how many executors run simultaneously.
type concurrencyTracker struct {
	current int32
	peak    int32
}

func (c *concurrencyTracker) enter() {
	n := atomic.AddInt32(&c.current, 1)
	for {
		peak := atomic.LoadInt32(&c.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&c.peak, peak, n) {
			return
		}
	}
}

func (c *concurrencyTracker) exit() {
	atomic.AddInt32(&c.current, -1)
}

func TestParallelStrategy_FanOutRespectsDependencies(t *testing.T) {
	t.Parallel()

	g := fanOutGraph()
	tracker := &concurrencyTracker{}

	var mu sync.Mutex
	executedBefore := make(map[string][]string)

	registry := graph.NewExecutorRegistry()
	registry.RegisterFunc(graph.NodeTypeTool, func(_ context.Context, node *graph.Node, execCtx *graph.ExecutionContext) (any, error) {
		tracker.enter()
		defer tracker.exit()

		mu.Lock()
		executedBefore[node.ID] = execCtx.ExecutedNodes()
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)
		return node.ID, nil
	})

	exec := graph.NewGraphExecutor(registry, graph.WithStrategy(graph.NewParallelStrategy()))
	result, execCtx, err := exec.ExecuteWithContext(context.Background(), g, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, execCtx.ExecutedCount())
	assert.Equal(t, "d", result, "single end node result")

	// b and c only start after a; d only after both b and c.
	assert.Contains(t, executedBefore["b"], "a")
	assert.Contains(t, executedBefore["c"], "a")
	assert.Contains(t, executedBefore["d"], "b")
	assert.Contains(t, executedBefore["d"], "c")

	assert.GreaterOrEqual(t, atomic.LoadInt32(&tracker.peak), int32(2),
		"b and c should have overlapped")
}

func TestParallelStrategy_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("wide", "Wide")
	for _, id := range []string{"w1", "w2", "w3", "w4"} {
		g.AddNode(&graph.Node{ID: id, Type: graph.NodeTypeTool})
	}

	tracker := &concurrencyTracker{}
	registry := graph.NewExecutorRegistry()
	registry.RegisterFunc(graph.NodeTypeTool, func(context.Context, *graph.Node, *graph.ExecutionContext) (any, error) {
		tracker.enter()
		defer tracker.exit()
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	})

	exec := graph.NewGraphExecutor(registry,
		graph.WithStrategy(graph.NewParallelStrategy(graph.WithMaxConcurrency(2))))

	_, err := exec.Execute(context.Background(), g, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&tracker.peak), int32(2))
}

func TestParallelStrategy_StaticDependencies(t *testing.T) {
	t.Parallel()

	rec := &orderRecorder{}
	exec := graph.NewGraphExecutor(recordingRegistry(rec, graph.NodeTypeTool),
		graph.WithStrategy(graph.NewParallelStrategy(graph.WithStaticDependencies())))

	_, execCtx, err := exec.ExecuteWithContext(context.Background(), fanOutGraph(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, execCtx.ExecutedCount())
	order := rec.recorded()
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
}

func TestParallelStrategy_MultipleEndNodes(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("split", "Split")
	for _, id := range []string{"a", "left", "right"} {
		g.AddNode(&graph.Node{ID: id, Type: graph.NodeTypeTool})
	}
	g.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "left"})
	g.AddEdge(&graph.Edge{ID: "e2", From: "a", To: "right"})

	rec := &orderRecorder{}
	exec := graph.NewGraphExecutor(recordingRegistry(rec, graph.NodeTypeTool),
		graph.WithStrategy(graph.NewParallelStrategy()))

	result, err := exec.Execute(context.Background(), g, nil)
	require.NoError(t, err)

	// Two end nodes yield a slice ordered by node ID.
	assert.Equal(t, []any{"result_left", "result_right"}, result)
}

func TestParallelStrategy_UnreachedEndNodesRecorded(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("gated", "Gated")
	for _, id := range []string{"a", "open", "closed"} {
		g.AddNode(&graph.Node{ID: id, Type: graph.NodeTypeTool})
	}
	g.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "open"})
	g.AddEdge(&graph.Edge{ID: "e2", From: "a", To: "closed", Condition: &graph.VariableCondition{
		Name: "never_set", Operator: graph.ResultTruthy,
	}})

	rec := &orderRecorder{}
	exec := graph.NewGraphExecutor(recordingRegistry(rec, graph.NodeTypeTool),
		graph.WithStrategy(graph.NewParallelStrategy()))

	result, execCtx, err := exec.ExecuteWithContext(context.Background(), g, nil)
	require.NoError(t, err, "a held-back end node is not an error")

	assert.Equal(t, "result_open", result)
	assert.False(t, execCtx.IsNodeExecuted("closed"))

	unreached, ok := execCtx.Metadata("unreached_end_nodes")
	require.True(t, ok)
	assert.Equal(t, []string{"closed"}, unreached)
}

func TestParallelStrategy_NodeFailureFailsRun(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("split", "Split")
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(&graph.Node{ID: id, Type: graph.NodeTypeTool})
	}
	g.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "b"})
	g.AddEdge(&graph.Edge{ID: "e2", From: "a", To: "c"})

	registry := graph.NewExecutorRegistry()
	registry.RegisterFunc(graph.NodeTypeTool, func(_ context.Context, node *graph.Node, _ *graph.ExecutionContext) (any, error) {
		if node.ID == "b" {
			return nil, assert.AnError
		}
		return node.ID, nil
	})

	exec := graph.NewGraphExecutor(registry, graph.WithStrategy(graph.NewParallelStrategy()))
	_, err := exec.Execute(context.Background(), g, nil)
	require.Error(t, err)

	var nodeErr *graph.NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "b", nodeErr.NodeID)
}
