package graph

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
)

// ExpressionEvaluator evaluates the engine's small expression sub-language.
// Source text is parsed once into a govaluate AST; {{path}} tokens are
// rewritten to synthetic variables and resolved against the execution
// context at evaluation time.
//
// The sub-language is a convenience layer for trusted, author-supplied
// expressions. It is not a sandbox and must not be treated as a security
// boundary.
type ExpressionEvaluator struct {
	functions map[string]govaluate.ExpressionFunction
}

// NewExpressionEvaluator creates an evaluator with the standard helper
// function library (arithmetic, string, array, date, and type checks).
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{functions: builtinFunctions()}
}

// CompiledExpression is a reusable, parsed expression bound to its source
// text. Interpolation targets are resolved per evaluation, so one compiled
// expression can serve many contexts.
type CompiledExpression struct {
	source   string
	expr     *govaluate.EvaluableExpression
	bindings map[string]string // synthetic variable -> context path
}

// Source returns the original expression text.
func (c *CompiledExpression) Source() string { return c.source }

// Compile parses an expression into a reusable form.
func (e *ExpressionEvaluator) Compile(source string) (*CompiledExpression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &ExpressionError{Expression: source, Reason: "empty expression"}
	}

	bindings := make(map[string]string)
	rewritten := tokenPattern.ReplaceAllStringFunc(source, func(token string) string {
		path := strings.TrimSpace(tokenPattern.FindStringSubmatch(token)[1])
		name := fmt.Sprintf("interp_%d", len(bindings))
		bindings[name] = path
		return name
	})

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, e.functions)
	if err != nil {
		return nil, &ExpressionError{Expression: source, Reason: "parse failed", Err: err}
	}
	return &CompiledExpression{source: source, expr: expr, bindings: bindings}, nil
}

// Evaluate parses and evaluates an expression against the context.
func (e *ExpressionEvaluator) Evaluate(source string, execCtx *ExecutionContext) (any, error) {
	compiled, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return compiled.Evaluate(execCtx)
}

// EvaluateBool evaluates an expression and requires a boolean result.
func (e *ExpressionEvaluator) EvaluateBool(source string, execCtx *ExecutionContext) (bool, error) {
	result, err := e.Evaluate(source, execCtx)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, &ExpressionError{
			Expression: source,
			Reason:     fmt.Sprintf("expected boolean result, got %T", result),
		}
	}
	return b, nil
}

// Validate reports whether an expression parses. It does not evaluate.
func (e *ExpressionEvaluator) Validate(source string) error {
	_, err := e.Compile(source)
	return err
}

// EvaluateBatch evaluates many expressions against one context. The batch is
// atomic: if any expression fails, no results are returned and the error
// aggregates every per-expression failure.
func (e *ExpressionEvaluator) EvaluateBatch(sources []string, execCtx *ExecutionContext) ([]any, error) {
	results := make([]any, len(sources))
	var errs []error
	for i, source := range sources {
		result, err := e.Evaluate(source, execCtx)
		if err != nil {
			errs = append(errs, fmt.Errorf("expression %d: %w", i, err))
			continue
		}
		results[i] = result
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

// Evaluate runs the compiled expression against a context. All context
// variables and metadata are visible by name, along with the reserved
// bindings input, executionId, elapsedTime, and executedNodes.
func (c *CompiledExpression) Evaluate(execCtx *ExecutionContext) (any, error) {
	params := make(map[string]any)

	if execCtx != nil {
		for k, v := range execCtx.AllMetadata() {
			params[k] = v
		}
		for k, v := range execCtx.Variables() {
			params[k] = v
		}
		params[bindingInput] = execCtx.Input()
		params[bindingExecutionID] = execCtx.ExecutionID()
		params[bindingElapsedTime] = float64(execCtx.Elapsed().Milliseconds())
		executed := execCtx.ExecutedNodes()
		nodes := make([]any, len(executed))
		for i, id := range executed {
			nodes[i] = id
		}
		params[bindingExecutedNodes] = nodes
	}

	for name, path := range c.bindings {
		value, ok := resolvePath(execCtx, path)
		if !ok {
			return nil, &ExpressionError{
				Expression: c.source,
				Reason:     fmt.Sprintf("unresolved path %q", path),
			}
		}
		params[name] = value
	}

	result, err := c.expr.Evaluate(params)
	if err != nil {
		return nil, &ExpressionError{Expression: c.source, Reason: "evaluation failed", Err: err}
	}
	return result, nil
}

func builtinFunctions() map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		"abs":   unaryNumeric("abs", math.Abs),
		"floor": unaryNumeric("floor", math.Floor),
		"ceil":  unaryNumeric("ceil", math.Ceil),
		"round": unaryNumeric("round", math.Round),
		"min": func(args ...any) (any, error) {
			return foldNumeric("min", math.Min, args...)
		},
		"max": func(args ...any) (any, error) {
			return foldNumeric("max", math.Max, args...)
		},
		"upper": unaryString("upper", strings.ToUpper),
		"lower": unaryString("lower", strings.ToLower),
		"trim":  unaryString("trim", strings.TrimSpace),
		"concat": func(args ...any) (any, error) {
			var sb strings.Builder
			for _, a := range args {
				sb.WriteString(fmt.Sprint(a))
			}
			return sb.String(), nil
		},
		"substr": func(args ...any) (any, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("substr expects (string, start, end)")
			}
			s, ok := args[0].(string)
			start, okStart := toFloat(args[1])
			end, okEnd := toFloat(args[2])
			if !ok || !okStart || !okEnd {
				return nil, fmt.Errorf("substr expects (string, number, number)")
			}
			i, j := int(start), int(end)
			if i < 0 || j > len(s) || i > j {
				return nil, fmt.Errorf("substr bounds [%d:%d] out of range for length %d", i, j, len(s))
			}
			return s[i:j], nil
		},
		"length": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("length expects one argument")
			}
			switch v := args[0].(type) {
			case string:
				return float64(len(v)), nil
			case []any:
				return float64(len(v)), nil
			case map[string]any:
				return float64(len(v)), nil
			}
			return nil, fmt.Errorf("length: unsupported type %T", args[0])
		},
		"size": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("size expects one argument")
			}
			if v, ok := args[0].([]any); ok {
				return float64(len(v)), nil
			}
			return nil, fmt.Errorf("size: expected array, got %T", args[0])
		},
		"first": func(args ...any) (any, error) {
			v, err := nonEmptyArray("first", args...)
			if err != nil {
				return nil, err
			}
			return v[0], nil
		},
		"last": func(args ...any) (any, error) {
			v, err := nonEmptyArray("last", args...)
			if err != nil {
				return nil, err
			}
			return v[len(v)-1], nil
		},
		"now": func(args ...any) (any, error) {
			return float64(time.Now().UnixMilli()), nil
		},
		"isNil": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("isNil expects one argument")
			}
			return args[0] == nil, nil
		},
		"isNumber": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("isNumber expects one argument")
			}
			_, ok := toFloat(args[0])
			return ok, nil
		},
		"isString": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("isString expects one argument")
			}
			_, ok := args[0].(string)
			return ok, nil
		},
		"isBool": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("isBool expects one argument")
			}
			_, ok := args[0].(bool)
			return ok, nil
		},
	}
}

func unaryNumeric(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects one argument", name)
		}
		f, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %T", name, args[0])
		}
		return fn(f), nil
	}
}

func unaryString(name string, fn func(string) string) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects one argument", name)
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %T", name, args[0])
		}
		return fn(s), nil
	}
}

func foldNumeric(name string, fn func(float64, float64) float64, args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%s expects at least two arguments", name)
	}
	acc, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: expected number, got %T", name, args[0])
	}
	for _, a := range args[1:] {
		f, ok := toFloat(a)
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %T", name, a)
		}
		acc = fn(acc, f)
	}
	return acc, nil
}

func nonEmptyArray(name string, args ...any) ([]any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects one argument", name)
	}
	v, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", name, args[0])
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%s: empty array", name)
	}
	return v, nil
}
