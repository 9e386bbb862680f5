package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/graph"
)

func TestExpressionEvaluator_Literals(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, nil)

	result, err := e.Evaluate("2 * 3 + 4", execCtx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result)

	result, err = e.Evaluate("'a' + 'b'", execCtx)
	require.NoError(t, err)
	assert.Equal(t, "ab", result)
}

func TestExpressionEvaluator_Interpolation(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, map[string]any{
		"score": 0.7,
		"user":  map[string]any{"name": "ada", "age": 36},
	})

	result, err := e.Evaluate("{{score}} * 10", execCtx)
	require.NoError(t, err)
	assert.Equal(t, 7.0, result)

	// Dot paths traverse nested values.
	result, err = e.Evaluate("{{user.age}} >= 18", execCtx)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = e.Evaluate("upper({{user.name}})", execCtx)
	require.NoError(t, err)
	assert.Equal(t, "ADA", result)
}

func TestExpressionEvaluator_VariablesVisibleByName(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, map[string]any{"count": 4})

	result, err := e.Evaluate("count + 1", execCtx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestExpressionEvaluator_ReservedBindings(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, nil)
	execCtx.MarkNodeExecuted("a")
	execCtx.MarkNodeExecuted("b")

	result, err := e.Evaluate("executionId != ''", execCtx)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = e.Evaluate("size(executedNodes)", execCtx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result)

	result, err = e.Evaluate("elapsedTime >= 0", execCtx)
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestExpressionEvaluator_Builtins(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, map[string]any{"items": []any{"x", "y", "z"}})

	tests := []struct {
		expr string
		want any
	}{
		{"abs(-3)", 3.0},
		{"floor(2.9)", 2.0},
		{"ceil(2.1)", 3.0},
		{"round(2.5)", 3.0},
		{"min(3, 1, 2)", 1.0},
		{"max(3, 1, 2)", 3.0},
		{"upper('go')", "GO"},
		{"lower('GO')", "go"},
		{"trim('  x  ')", "x"},
		{"concat('a', 1, 'b')", "a1b"},
		{"substr('hello', 1, 3)", "el"},
		{"length('hello')", 5.0},
		{"size({{items}})", 3.0},
		{"first({{items}})", "x"},
		{"last({{items}})", "z"},
		{"isNil(0)", false},
		{"isNumber(3.2)", true},
		{"isString('s')", true},
		{"isBool(true && false)", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			result, err := e.Evaluate(tt.expr, execCtx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestExpressionEvaluator_Errors(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, nil)

	_, err := e.Evaluate("", execCtx)
	var exprErr *graph.ExpressionError
	require.ErrorAs(t, err, &exprErr)

	_, err = e.Evaluate("1 +* 2", execCtx)
	require.ErrorAs(t, err, &exprErr)

	_, err = e.Evaluate("{{missing}} > 1", execCtx)
	require.ErrorAs(t, err, &exprErr)

	_, err = e.EvaluateBool("1 + 1", execCtx)
	require.ErrorAs(t, err, &exprErr)

	assert.Error(t, e.Validate("((("))
	assert.NoError(t, e.Validate("{{anything}} == 1"), "validate parses without resolving")
}

func TestExpressionEvaluator_BatchIsAtomic(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	execCtx := newTestContext(t, map[string]any{"x": 2})

	results, err := e.EvaluateBatch([]string{"x + 1", "x * 2"}, execCtx)
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 4.0}, results)

	results, err = e.EvaluateBatch([]string{"x + 1", "{{missing}}", "1 +* 2"}, execCtx)
	require.Error(t, err)
	assert.Nil(t, results, "partial results must not leak out of a failed batch")
}

func TestCompiledExpression_Reuse(t *testing.T) {
	t.Parallel()

	e := graph.NewExpressionEvaluator()
	compiled, err := e.Compile("{{score}} > 0.5")
	require.NoError(t, err)
	assert.Equal(t, "{{score}} > 0.5", compiled.Source())

	high := newTestContext(t, map[string]any{"score": 0.9})
	low := newTestContext(t, map[string]any{"score": 0.1})

	result, err := compiled.Evaluate(high)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = compiled.Evaluate(low)
	require.NoError(t, err)
	assert.Equal(t, false, result)
}
