package graph

import (
	"fmt"
	"strings"
)

// Exporter renders graphs and plans in diagram formats.
type Exporter struct {
	graph *Graph
}

// NewExporter creates a new exporter for the given graph.
func NewExporter(g *Graph) *Exporter {
	return &Exporter{graph: g}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram representation of the graph
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{
		Direction: "TD",
	})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Start nodes are drawn as stadiums, end nodes as double circles, and
// conditional edges as dashed arrows labeled "?".
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	starts := make(map[string]bool)
	for _, id := range ge.graph.StartNodes() {
		starts[id] = true
	}
	ends := make(map[string]bool)
	for _, id := range ge.graph.EndNodes() {
		ends[id] = true
	}

	for _, id := range ge.graph.NodeIDs() {
		label := ge.graph.Nodes[id].Name
		if label == "" {
			label = id
		}
		switch {
		case starts[id]:
			sb.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", id, label))
		case ends[id]:
			sb.WriteString(fmt.Sprintf("    %s(((\"%s\")))\n", id, label))
		default:
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, label))
		}
	}

	for _, edgeID := range sortedEdgeIDs(ge.graph) {
		edge := ge.graph.Edges[edgeID]
		if edge.Condition != nil {
			sb.WriteString(fmt.Sprintf("    %s -.->|?| %s\n", edge.From, edge.To))
		} else {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", edge.From, edge.To))
		}
	}

	for _, id := range ge.graph.StartNodes() {
		sb.WriteString(fmt.Sprintf("    style %s fill:#90EE90\n", id))
	}
	for _, id := range ge.graph.EndNodes() {
		sb.WriteString(fmt.Sprintf("    style %s fill:#FFB6C1\n", id))
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	for _, id := range ge.graph.StartNodes() {
		sb.WriteString(fmt.Sprintf("    %s [style=filled, fillcolor=lightgreen];\n", id))
	}
	for _, id := range ge.graph.EndNodes() {
		sb.WriteString(fmt.Sprintf("    %s [style=filled, fillcolor=lightpink];\n", id))
	}

	for _, edgeID := range sortedEdgeIDs(ge.graph) {
		edge := ge.graph.Edges[edgeID]
		if edge.Condition != nil {
			sb.WriteString(fmt.Sprintf("    %s -> %s [style=dashed, label=\"?\"];\n", edge.From, edge.To))
		} else {
			sb.WriteString(fmt.Sprintf("    %s -> %s;\n", edge.From, edge.To))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawPlanMermaid renders an execution plan as a Mermaid flowchart with one
// subgraph per parallel group, so the wave structure is visible at a glance.
func DrawPlanMermaid(plan *ExecutionPlan) string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")

	for i, group := range plan.ParallelGroups {
		sb.WriteString(fmt.Sprintf("    subgraph group%d[\"Group %d\"]\n", i, i))
		for _, nodeID := range group {
			sb.WriteString(fmt.Sprintf("        %s[\"%s\"]\n", nodeID, nodeID))
		}
		sb.WriteString("    end\n")
	}

	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", dep, step.NodeID))
		}
	}

	for _, nodeID := range plan.CriticalPath {
		sb.WriteString(fmt.Sprintf("    style %s fill:#FFD700\n", nodeID))
	}

	return sb.String()
}
