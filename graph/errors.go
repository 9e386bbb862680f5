package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGraph is returned when a graph with no nodes is planned or validated.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrNilGraph is returned when a nil graph is handed to the engine.
	ErrNilGraph = errors.New("graph is nil")
)

// ValidationError reports a structurally invalid graph: empty, dangling
// edges, cycles, or disconnected nodes. Execution must not be attempted on a
// graph that fails validation.
type ValidationError struct {
	Reason string
	NodeID string
	EdgeID string
}

func (e *ValidationError) Error() string {
	switch {
	case e.EdgeID != "":
		return fmt.Sprintf("invalid graph: %s (edge %s)", e.Reason, e.EdgeID)
	case e.NodeID != "":
		return fmt.Sprintf("invalid graph: %s (node %s)", e.Reason, e.NodeID)
	default:
		return fmt.Sprintf("invalid graph: %s", e.Reason)
	}
}

// ConditionError reports a condition that could not be evaluated: unknown
// operator, missing required field, or a missing custom function.
type ConditionError struct {
	EdgeID string
	Reason string
	Err    error
}

func (e *ConditionError) Error() string {
	msg := fmt.Sprintf("condition on edge %s: %s", e.EdgeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConditionError) Unwrap() error { return e.Err }

// ExpressionError reports a syntax or runtime failure in the expression
// sub-language. Expression carries the original source text for attribution.
type ExpressionError struct {
	Expression string
	Reason     string
	Err        error
}

func (e *ExpressionError) Error() string {
	msg := fmt.Sprintf("expression %q: %s", e.Expression, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// NodeExecutionError wraps a failure from a node executor. The engine does
// not interpret the cause; the run aborts and the error propagates.
type NodeExecutionError struct {
	NodeID string
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

// PlanValidationError reports broken step dependencies in a hand-constructed
// or corrupted execution plan.
type PlanValidationError struct {
	StepID string
	Reason string
}

func (e *PlanValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("invalid plan: %s (step %s)", e.Reason, e.StepID)
	}
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}
