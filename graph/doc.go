// Package graph provides the core model and execution engine for FlowGraph.
//
// This package implements directed workflow graphs whose nodes are executed by
// pluggable executors and whose edges carry optional conditions that steer
// traversal. It offers three execution strategies (sequential, parallel, and
// conditional), an expression evaluator with {{path}} interpolation, a static
// execution planner with critical path analysis, and checkpointed state
// management over the store package.
//
// # Core Concepts
//
// ## Graph, Node, Edge
// A Graph is a set of typed Nodes connected by directed Edges. Edges may carry
// a Condition; an edge with no condition always passes. Nodes with no incoming
// edges are start nodes, nodes with no outgoing edges are end nodes.
//
// ## Executors
// Node behavior is supplied by the caller: register a NodeExecutor per node
// type on an ExecutorRegistry and hand the registry to the GraphExecutor. The
// engine owns traversal, condition evaluation, and state; executors own what
// a node actually does.
//
// ## Strategies
// SequentialStrategy walks depth-first one node at a time. ParallelStrategy
// executes ready frontiers concurrently in waves. ConditionalStrategy lets
// edge conditions steer the walk and supports first/all/parallel/weighted
// branching when several edges hold.
//
// # Example Usage
//
//	g := graph.NewGraph("pipeline", "Pipeline")
//	g.AddNode(&graph.Node{ID: "fetch", Type: graph.NodeTypeTool})
//	g.AddNode(&graph.Node{ID: "transform", Type: graph.NodeTypeTransform})
//	g.AddEdge(&graph.Edge{ID: "e1", From: "fetch", To: "transform"})
//
//	registry := graph.NewExecutorRegistry()
//	registry.RegisterFunc(graph.NodeTypeTool, fetchFunc)
//	registry.RegisterFunc(graph.NodeTypeTransform, transformFunc)
//
//	exec := graph.NewGraphExecutor(registry)
//	result, err := exec.Execute(context.Background(), g, input)
//
// ## Conditions
//
// Edge conditions are a closed set of variants: expressions (govaluate syntax
// with {{path}} interpolation), comparisons, logical combinators, existence
// checks, node result checks, variable checks, and registered custom
// functions.
//
//	g.AddEdge(&graph.Edge{
//		ID: "e2", From: "transform", To: "publish",
//		Condition: &graph.ComparisonCondition{
//			Left: "{{score}}", Operator: graph.OpGreaterThan, Right: 0.5,
//		},
//	})
//
// ## Planning
//
// The planner analyzes a graph without executing it:
//
//	planner := graph.NewExecutionPlanner()
//	plan, err := planner.CreateExecutionPlan(g)
//	// plan.ParallelGroups, plan.CriticalPath, plan.EstimatedDuration
//
// ## Checkpointing
//
// Execution state is snapshotted through a StateManager backed by any
// store.CheckpointStore implementation:
//
//	sm := graph.NewStateManager(memory.NewMemoryCheckpointStore(),
//		graph.WithCheckpointPolicy(graph.CheckpointPolicy{OnNodeExecution: true}))
//	exec := graph.NewGraphExecutor(registry, graph.WithStateManager(sm))
//
// # Thread Safety
//
// Graphs are safe for concurrent reads once built; construction is not
// synchronized. ExecutionContext is fully synchronized and shared safely
// across the goroutines a strategy spawns.
package graph
