package graph

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// ConditionEvaluator evaluates edge conditions against a run's live state.
// Evaluation is pure except for reads of the execution context; it never
// mutates anything.
type ConditionEvaluator struct {
	expressions *ExpressionEvaluator
}

// NewConditionEvaluator creates a condition evaluator with its own
// expression evaluator for ExpressionCondition variants.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{expressions: NewExpressionEvaluator()}
}

// Evaluate resolves an edge's condition to a boolean. An edge without a
// condition always passes.
func (ce *ConditionEvaluator) Evaluate(edge *Edge, execCtx *ExecutionContext) (bool, error) {
	if edge.Condition == nil {
		return true, nil
	}
	ok, err := ce.evaluateCondition(edge.Condition, execCtx)
	if err != nil {
		return false, &ConditionError{EdgeID: edge.ID, Reason: "evaluation failed", Err: err}
	}
	return ok, nil
}

func (ce *ConditionEvaluator) evaluateCondition(cond Condition, execCtx *ExecutionContext) (bool, error) {
	switch c := cond.(type) {
	case *ExpressionCondition:
		return ce.expressions.EvaluateBool(c.Expression, execCtx)
	case *ComparisonCondition:
		return ce.evaluateComparison(c, execCtx)
	case *LogicalCondition:
		return ce.evaluateLogical(c, execCtx)
	case *ExistenceCondition:
		return evaluateExistence(c, execCtx)
	case *CustomCondition:
		return ce.evaluateCustom(c, execCtx)
	case *NodeResultCondition:
		return evaluateNodeResult(c, execCtx)
	case *VariableCondition:
		return evaluateVariable(c, execCtx)
	default:
		return false, fmt.Errorf("unknown condition type %T", cond)
	}
}

func (ce *ConditionEvaluator) evaluateComparison(c *ComparisonCondition, execCtx *ExecutionContext) (bool, error) {
	left, err := resolveOperand(c.Left, execCtx)
	if err != nil {
		return false, err
	}
	right, err := resolveOperand(c.Right, execCtx)
	if err != nil {
		return false, err
	}

	switch c.Operator {
	case OpEquals:
		return valuesEqual(left, right), nil
	case OpNotEquals:
		return !valuesEqual(left, right), nil
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		cmp, err := orderValues(left, right)
		if err != nil {
			return false, err
		}
		switch c.Operator {
		case OpGreaterThan:
			return cmp > 0, nil
		case OpGreaterThanOrEqual:
			return cmp >= 0, nil
		case OpLessThan:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case OpContains:
		return containsValue(left, right)
	case OpStartsWith:
		ls, rs, err := stringPair(left, right, OpStartsWith)
		if err != nil {
			return false, err
		}
		return strings.HasPrefix(ls, rs), nil
	case OpEndsWith:
		ls, rs, err := stringPair(left, right, OpEndsWith)
		if err != nil {
			return false, err
		}
		return strings.HasSuffix(ls, rs), nil
	case OpMatches:
		ls, rs, err := stringPair(left, right, OpMatches)
		if err != nil {
			return false, err
		}
		re, err := regexp.Compile(rs)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", rs, err)
		}
		return re.MatchString(ls), nil
	case OpIn:
		return memberOf(left, right)
	case OpNotIn:
		ok, err := memberOf(left, right)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", c.Operator)
	}
}

func (ce *ConditionEvaluator) evaluateLogical(c *LogicalCondition, execCtx *ExecutionContext) (bool, error) {
	switch c.Operator {
	case LogicalAnd:
		for _, op := range c.Operands {
			ok, err := ce.evaluateCondition(op, execCtx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case LogicalOr:
		for _, op := range c.Operands {
			ok, err := ce.evaluateCondition(op, execCtx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case LogicalNot:
		if len(c.Operands) != 1 {
			return false, fmt.Errorf("not requires exactly one operand, got %d", len(c.Operands))
		}
		ok, err := ce.evaluateCondition(c.Operands[0], execCtx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unknown logical operator %q", c.Operator)
	}
}

func evaluateExistence(c *ExistenceCondition, execCtx *ExecutionContext) (bool, error) {
	value, found := resolvePath(execCtx, c.Path)

	switch c.Check {
	case CheckExists:
		return found, nil
	case CheckNotExists:
		return !found, nil
	case CheckEmpty:
		return !found || isEmptyValue(value), nil
	case CheckNotEmpty:
		return found && !isEmptyValue(value), nil
	default:
		return false, fmt.Errorf("unknown existence check %q", c.Check)
	}
}

func (ce *ConditionEvaluator) evaluateCustom(c *CustomCondition, execCtx *ExecutionContext) (bool, error) {
	binding, ok := execCtx.Variable("function_" + c.Function)
	if !ok {
		return false, fmt.Errorf("custom function %q not found in context", c.Function)
	}

	var fn CustomConditionFunc
	switch f := binding.(type) {
	case CustomConditionFunc:
		fn = f
	case func(map[string]any, *ExecutionContext) (bool, error):
		fn = f
	default:
		return false, fmt.Errorf("custom function %q is not callable (got %T)", c.Function, binding)
	}

	params := make(map[string]any, len(c.Parameters))
	for name, raw := range c.Parameters {
		resolved, err := resolveOperand(raw, execCtx)
		if err != nil {
			return false, err
		}
		params[name] = resolved
	}
	return fn(params, execCtx)
}

func evaluateNodeResult(c *NodeResultCondition, execCtx *ExecutionContext) (bool, error) {
	result, ok := execCtx.NodeResult(c.NodeID)
	if !ok {
		return false, fmt.Errorf("no recorded result for node %q", c.NodeID)
	}

	field := c.Field
	if field == "" {
		field = "success"
	}
	value, _ := lookupField(result, field)

	switch c.Operator {
	case ResultEquals:
		return valuesEqual(value, c.Value), nil
	case ResultNotEquals:
		return !valuesEqual(value, c.Value), nil
	case ResultTruthy:
		return isTruthy(value), nil
	case ResultFalsy:
		return !isTruthy(value), nil
	default:
		return false, fmt.Errorf("operator %q not supported for node results", c.Operator)
	}
}

func evaluateVariable(c *VariableCondition, execCtx *ExecutionContext) (bool, error) {
	value, found := execCtx.Variable(c.Name)

	switch c.Operator {
	case ResultExists:
		return found, nil
	case ResultNotExists:
		return !found, nil
	case ResultEquals:
		return found && valuesEqual(value, c.Value), nil
	case ResultNotEquals:
		return !found || !valuesEqual(value, c.Value), nil
	case ResultTruthy:
		return found && isTruthy(value), nil
	case ResultFalsy:
		return !found || !isTruthy(value), nil
	default:
		return false, fmt.Errorf("unknown variable operator %q", c.Operator)
	}
}

// ValidationResult reports the outcome of a structural check.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate performs the structural field checks for an edge's condition
// without evaluating anything. A nil condition is valid.
func (ce *ConditionEvaluator) Validate(edge *Edge) ValidationResult {
	if edge.Condition == nil {
		return ValidationResult{Valid: true}
	}
	errs := validateCondition(edge.Condition)
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateCondition(cond Condition) []string {
	var errs []string
	switch c := cond.(type) {
	case *ExpressionCondition:
		if strings.TrimSpace(c.Expression) == "" {
			errs = append(errs, "expression condition requires an expression")
		}
	case *ComparisonCondition:
		if !knownComparisonOperator(c.Operator) {
			errs = append(errs, fmt.Sprintf("unknown comparison operator %q", c.Operator))
		}
	case *LogicalCondition:
		switch c.Operator {
		case LogicalAnd, LogicalOr:
			if len(c.Operands) == 0 {
				errs = append(errs, fmt.Sprintf("%s requires at least one operand", c.Operator))
			}
		case LogicalNot:
			if len(c.Operands) != 1 {
				errs = append(errs, fmt.Sprintf("not requires exactly one operand, got %d", len(c.Operands)))
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown logical operator %q", c.Operator))
		}
		for _, op := range c.Operands {
			errs = append(errs, validateCondition(op)...)
		}
	case *ExistenceCondition:
		if strings.TrimSpace(c.Path) == "" {
			errs = append(errs, "existence condition requires a path")
		}
		switch c.Check {
		case CheckExists, CheckNotExists, CheckEmpty, CheckNotEmpty:
		default:
			errs = append(errs, fmt.Sprintf("unknown existence check %q", c.Check))
		}
	case *CustomCondition:
		if strings.TrimSpace(c.Function) == "" {
			errs = append(errs, "custom condition requires a function name")
		}
	case *NodeResultCondition:
		if strings.TrimSpace(c.NodeID) == "" {
			errs = append(errs, "node result condition requires a node id")
		}
		switch c.Operator {
		case ResultEquals, ResultNotEquals, ResultTruthy, ResultFalsy:
		default:
			errs = append(errs, fmt.Sprintf("operator %q not supported for node results", c.Operator))
		}
	case *VariableCondition:
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, "variable condition requires a variable name")
		}
		switch c.Operator {
		case ResultExists, ResultNotExists, ResultEquals, ResultNotEquals, ResultTruthy, ResultFalsy:
		default:
			errs = append(errs, fmt.Sprintf("unknown variable operator %q", c.Operator))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown condition type %T", cond))
	}
	return errs
}

func knownComparisonOperator(op ComparisonOperator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpContains, OpStartsWith,
		OpEndsWith, OpMatches, OpIn, OpNotIn:
		return true
	}
	return false
}

// ExtractVariables statically collects the context paths a condition reads:
// {{path}} tokens plus the variant-specific path, variable, and node id
// fields. Used for dependency and impact analysis, never for control flow.
func (ce *ConditionEvaluator) ExtractVariables(edge *Edge) []string {
	if edge.Condition == nil {
		return nil
	}
	seen := make(map[string]struct{})
	collectVariables(edge.Condition, seen)

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func collectVariables(cond Condition, seen map[string]struct{}) {
	addTokens := func(s string) {
		for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
			seen[strings.TrimSpace(m[1])] = struct{}{}
		}
	}

	switch c := cond.(type) {
	case *ExpressionCondition:
		addTokens(c.Expression)
	case *ComparisonCondition:
		if s, ok := c.Left.(string); ok {
			addTokens(s)
		}
		if s, ok := c.Right.(string); ok {
			addTokens(s)
		}
	case *LogicalCondition:
		for _, op := range c.Operands {
			collectVariables(op, seen)
		}
	case *ExistenceCondition:
		if c.Path != "" {
			seen[c.Path] = struct{}{}
		}
	case *CustomCondition:
		for _, raw := range c.Parameters {
			if s, ok := raw.(string); ok {
				addTokens(s)
			}
		}
	case *NodeResultCondition:
		if c.NodeID != "" {
			seen[c.NodeID] = struct{}{}
		}
	case *VariableCondition:
		if c.Name != "" {
			seen[c.Name] = struct{}{}
		}
	}
}

// resolveOperand turns a condition operand into a concrete value. A string
// that is exactly one {{path}} token resolves to the referenced value; a
// string with embedded tokens is interpolated textually; anything else is a
// literal.
func resolveOperand(raw any, execCtx *ExecutionContext) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}

	trimmed := strings.TrimSpace(s)
	if m := tokenPattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		value, found := resolvePath(execCtx, m[1])
		if !found {
			return nil, fmt.Errorf("unresolved path %q", strings.TrimSpace(m[1]))
		}
		return value, nil
	}

	if !tokenPattern.MatchString(s) {
		return s, nil
	}

	var resolveErr error
	interpolated := tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		path := strings.TrimSpace(tokenPattern.FindStringSubmatch(token)[1])
		value, found := resolvePath(execCtx, path)
		if !found {
			resolveErr = fmt.Errorf("unresolved path %q", path)
			return token
		}
		return fmt.Sprint(value)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return interpolated, nil
}

// valuesEqual compares two values with numeric coercion, so 5 == 5.0 holds
// across the int/float boundary JSON decoding introduces.
func valuesEqual(left, right any) bool {
	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			return lf == rf
		}
		return false
	}
	return reflect.DeepEqual(left, right)
}

// orderValues compares two ordered values, returning -1, 0, or 1. Numbers
// order numerically, strings lexicographically; mixing is an error.
func orderValues(left, right any) (int, error) {
	if lf, ok := toFloat(left); ok {
		rf, ok := toFloat(right)
		if !ok {
			return 0, fmt.Errorf("cannot order %T against %T", left, right)
		}
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return 0, fmt.Errorf("cannot order %T against %T", left, right)
		}
		return strings.Compare(ls, rs), nil
	}
	return 0, fmt.Errorf("values of type %T are not ordered", left)
}

// containsValue implements "contains": substring for strings, membership for
// slices, key presence for maps.
func containsValue(left, right any) (bool, error) {
	switch l := left.(type) {
	case string:
		rs, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string requires a string operand, got %T", right)
		}
		return strings.Contains(l, rs), nil
	case []any:
		for _, item := range l {
			if valuesEqual(item, right) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		key, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("contains on a map requires a string key, got %T", right)
		}
		_, present := l[key]
		return present, nil
	default:
		return false, fmt.Errorf("contains not supported on %T", left)
	}
}

// memberOf implements "in": left must appear in the right-hand collection.
func memberOf(left, right any) (bool, error) {
	switch r := right.(type) {
	case []any:
		for _, item := range r {
			if valuesEqual(item, left) {
				return true, nil
			}
		}
		return false, nil
	case string:
		ls, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("in on a string requires a string operand, got %T", left)
		}
		return strings.Contains(r, ls), nil
	default:
		return false, fmt.Errorf("in requires an array or string on the right, got %T", right)
	}
}

func stringPair(left, right any, op ComparisonOperator) (string, string, error) {
	ls, okL := left.(string)
	rs, okR := right.(string)
	if !okL || !okR {
		return "", "", fmt.Errorf("%s requires string operands, got %T and %T", op, left, right)
	}
	return ls, rs, nil
}
