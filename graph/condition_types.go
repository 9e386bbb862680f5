package graph

// Condition is the sealed set of edge condition variants. Each variant is a
// concrete struct; the unexported marker method keeps the set closed so the
// evaluator's type switch covers every possible value.
type Condition interface {
	conditionVariant()
}

// ComparisonOperator enumerates the operators accepted by ComparisonCondition.
type ComparisonOperator string

const (
	OpEquals             ComparisonOperator = "equals"
	OpNotEquals          ComparisonOperator = "not_equals"
	OpGreaterThan        ComparisonOperator = "greater_than"
	OpGreaterThanOrEqual ComparisonOperator = "greater_than_or_equal"
	OpLessThan           ComparisonOperator = "less_than"
	OpLessThanOrEqual    ComparisonOperator = "less_than_or_equal"
	OpContains           ComparisonOperator = "contains"
	OpStartsWith         ComparisonOperator = "starts_with"
	OpEndsWith           ComparisonOperator = "ends_with"
	OpMatches            ComparisonOperator = "matches"
	OpIn                 ComparisonOperator = "in"
	OpNotIn              ComparisonOperator = "not_in"
)

// LogicalOperator enumerates the operators accepted by LogicalCondition.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
	LogicalNot LogicalOperator = "not"
)

// ExistenceCheck enumerates the checks accepted by ExistenceCondition.
type ExistenceCheck string

const (
	CheckExists   ExistenceCheck = "exists"
	CheckNotExists ExistenceCheck = "not_exists"
	CheckEmpty    ExistenceCheck = "empty"
	CheckNotEmpty ExistenceCheck = "not_empty"
)

// ResultOperator enumerates comparisons against a recorded node result or a
// context variable.
type ResultOperator string

const (
	ResultEquals    ResultOperator = "equals"
	ResultNotEquals ResultOperator = "not_equals"
	ResultTruthy    ResultOperator = "truthy"
	ResultFalsy     ResultOperator = "falsy"
	ResultExists    ResultOperator = "exists"
	ResultNotExists ResultOperator = "not_exists"
)

// ExpressionCondition evaluates a boolean expression after interpolating
// {{path}} tokens against the execution context.
type ExpressionCondition struct {
	Expression string
}

// ComparisonCondition compares two operands. Operands may be literals or
// "{{path}}" lookups against the execution context.
type ComparisonCondition struct {
	Left     any
	Right    any
	Operator ComparisonOperator
}

// LogicalCondition combines nested conditions. "not" requires exactly one
// operand; "and"/"or" accept one or more.
type LogicalCondition struct {
	Operator LogicalOperator
	Operands []Condition
}

// ExistenceCondition checks presence or emptiness of a context path.
// "empty" matches missing values, nil, empty strings, and empty
// slices/maps.
type ExistenceCondition struct {
	Path  string
	Check ExistenceCheck
}

// CustomCondition invokes a caller-supplied predicate bound into the context
// variables under "function_<Function>". Parameters are resolved the same
// way as comparison operands before the call.
type CustomCondition struct {
	Function   string
	Parameters map[string]any
}

// CustomConditionFunc is the callable shape CustomCondition looks up.
type CustomConditionFunc func(params map[string]any, execCtx *ExecutionContext) (bool, error)

// NodeResultCondition inspects a prior node's recorded result. Field is a
// dot path into the result; it defaults to "success" when empty.
type NodeResultCondition struct {
	NodeID   string
	Field    string
	Operator ResultOperator
	Value    any
}

// VariableCondition inspects a named context variable.
type VariableCondition struct {
	Name     string
	Operator ResultOperator
	Value    any
}

func (*ExpressionCondition) conditionVariant() {}
func (*ComparisonCondition) conditionVariant() {}
func (*LogicalCondition) conditionVariant()    {}
func (*ExistenceCondition) conditionVariant()  {}
func (*CustomCondition) conditionVariant()     {}
func (*NodeResultCondition) conditionVariant() {}
func (*VariableCondition) conditionVariant()   {}
