package graph

import "sort"

// NodeType tags a node with the kind of work it performs. The engine never
// interprets the type beyond executor lookup and duration estimation; the
// actual behavior lives in the NodeExecutor registered for the type.
type NodeType string

const (
	NodeTypeLLM       NodeType = "llm"
	NodeTypeTool      NodeType = "tool"
	NodeTypeCondition NodeType = "condition"
	NodeTypeWait      NodeType = "wait"
	NodeTypeTransform NodeType = "transform"
	NodeTypeInput     NodeType = "input"
	NodeTypeOutput    NodeType = "output"
)

// Node is a typed unit of work in the graph. Nodes are constructed by the
// graph author and are read-only to the engine.
type Node struct {
	// ID is the unique identifier of the node within its graph.
	ID string

	// Type selects which NodeExecutor runs this node.
	Type NodeType

	// Name is a human-readable label.
	Name string

	// Properties holds free-form node configuration (e.g. "timeout").
	Properties map[string]any

	// Metadata holds engine hints, e.g. "parallel": true to request the
	// parallel strategy, or "estimatedDuration" for planning.
	Metadata map[string]any
}

// Edge is a directed, optionally conditional transition between two nodes.
type Edge struct {
	// ID is the unique identifier of the edge within its graph.
	ID string

	// From and To are node IDs. Both must exist in the owning graph.
	From string
	To   string

	// Condition gates traversal of the edge. A nil condition always passes.
	Condition Condition

	// Weight biases weighted branching. Values <= 0 are treated as 1.
	Weight float64
}

// Graph is an immutable description of nodes and conditional edges. Build it
// once, then hand it to the planner or executor; the engine never mutates it.
type Graph struct {
	ID    string
	Name  string
	Nodes map[string]*Node
	Edges map[string]*Edge
}

// NewGraph creates an empty graph with the given identity.
func NewGraph(id, name string) *Graph {
	return &Graph{
		ID:    id,
		Name:  name,
		Nodes: make(map[string]*Node),
		Edges: make(map[string]*Edge),
	}
}

// AddNode registers a node, replacing any node with the same ID.
func (g *Graph) AddNode(node *Node) {
	g.Nodes[node.ID] = node
}

// AddEdge registers an edge, replacing any edge with the same ID. Endpoint
// existence is checked by ValidateGraph / CreateExecutionPlan, not here.
func (g *Graph) AddEdge(edge *Edge) {
	g.Edges[edge.ID] = edge
}

// IncomingEdges returns the edges pointing at nodeID, ordered by edge ID.
func (g *Graph) IncomingEdges(nodeID string) []*Edge {
	var edges []*Edge
	for _, e := range g.Edges {
		if e.To == nodeID {
			edges = append(edges, e)
		}
	}
	sortEdges(edges)
	return edges
}

// OutgoingEdges returns the edges leaving nodeID, ordered by edge ID.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var edges []*Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			edges = append(edges, e)
		}
	}
	sortEdges(edges)
	return edges
}

// StartNodes returns the IDs of nodes with no incoming edges, sorted.
func (g *Graph) StartNodes() []string {
	hasIncoming := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		hasIncoming[e.To] = true
	}

	var starts []string
	for id := range g.Nodes {
		if !hasIncoming[id] {
			starts = append(starts, id)
		}
	}
	sort.Strings(starts)
	return starts
}

// EndNodes returns the IDs of nodes with no outgoing edges, sorted.
func (g *Graph) EndNodes() []string {
	hasOutgoing := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		hasOutgoing[e.From] = true
	}

	var ends []string
	for id := range g.Nodes {
		if !hasOutgoing[id] {
			ends = append(ends, id)
		}
	}
	sort.Strings(ends)
	return ends
}

// NodeIDs returns all node IDs, sorted.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}

// edgeWeight normalizes an edge weight for weighted branching.
func edgeWeight(e *Edge) float64 {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}
