// FlowGraph - Workflow Graph Execution for Go
//
// FlowGraph is a workflow engine built on directed graphs. Nodes declare what
// kind of work they are (tool calls, transforms, conditions, waits); edges
// declare ordering and may carry conditions that gate traversal. The engine
// supplies traversal strategies, expression-based routing, static planning
// with critical path analysis, and checkpointed execution state over
// pluggable stores.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/flowgraph/flowgraph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/flowgraph/flowgraph/graph"
//	)
//
//	func main() {
//		g := graph.NewGraph("greet", "Greeting Pipeline")
//		g.AddNode(&graph.Node{ID: "input", Type: graph.NodeTypeInput})
//		g.AddNode(&graph.Node{ID: "upper", Type: graph.NodeTypeTransform})
//		g.AddEdge(&graph.Edge{ID: "e1", From: "input", To: "upper"})
//
//		registry := graph.NewExecutorRegistry()
//		registry.RegisterFunc(graph.NodeTypeInput, func(ctx context.Context, node *graph.Node, execCtx *graph.ExecutionContext) (any, error) {
//			return execCtx.Input(), nil
//		})
//		registry.RegisterFunc(graph.NodeTypeTransform, func(ctx context.Context, node *graph.Node, execCtx *graph.ExecutionContext) (any, error) {
//			prev, _ := execCtx.NodeResult("input")
//			return fmt.Sprintf("HELLO, %v", prev), nil
//		})
//
//		exec := graph.NewGraphExecutor(registry)
//		result, err := exec.Execute(context.Background(), g, "world")
//		if err != nil {
//			panic(err)
//		}
//		fmt.Println(result)
//	}
//
// # Packages
//
//   - graph: the model, evaluators, strategies, executor, and planner
//   - store: the CheckpointStore interface and Checkpoint type
//   - store/memory, store/sqlite, store/redis, store/postgres: store backends
//   - log: the Logger interface plus stdlib and golog adapters
//
// See the examples directory for runnable programs covering sequential
// pipelines, parallel fan-out, and conditional branching.
package flowgraph
