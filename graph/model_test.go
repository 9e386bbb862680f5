package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowgraph/flowgraph/graph"
)

func TestGraph_Topology(t *testing.T) {
	t.Parallel()

	g := fanOutGraph()

	assert.Equal(t, []string{"a"}, g.StartNodes())
	assert.Equal(t, []string{"d"}, g.EndNodes())
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.NodeIDs())

	out := g.OutgoingEdges("a")
	assert.Len(t, out, 2)
	assert.Equal(t, "e1", out[0].ID)
	assert.Equal(t, "e2", out[1].ID)

	in := g.IncomingEdges("d")
	assert.Len(t, in, 2)
	assert.Equal(t, "e3", in[0].ID)

	assert.Empty(t, g.IncomingEdges("a"))
	assert.Empty(t, g.OutgoingEdges("d"))
}

func TestGraph_EveryNodeIsStartAndEndWithoutEdges(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("bare", "Bare")
	g.AddNode(&graph.Node{ID: "x", Type: graph.NodeTypeTool})
	g.AddNode(&graph.Node{ID: "y", Type: graph.NodeTypeTool})

	assert.Equal(t, []string{"x", "y"}, g.StartNodes())
	assert.Equal(t, []string{"x", "y"}, g.EndNodes())
}

func TestGraph_CyclicGraphHasNoStartNodes(t *testing.T) {
	t.Parallel()

	g := graph.NewGraph("ring", "Ring")
	g.AddNode(&graph.Node{ID: "a", Type: graph.NodeTypeTool})
	g.AddNode(&graph.Node{ID: "b", Type: graph.NodeTypeTool})
	g.AddEdge(&graph.Edge{ID: "e1", From: "a", To: "b"})
	g.AddEdge(&graph.Edge{ID: "e2", From: "b", To: "a"})

	assert.Empty(t, g.StartNodes())
	assert.Empty(t, g.EndNodes())
}
