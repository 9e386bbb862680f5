package graph

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// tokenPattern matches {{path}} interpolation tokens.
var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Reserved binding names available to expressions and {{path}} lookups in
// addition to context variables and metadata.
const (
	bindingInput         = "input"
	bindingExecutionID   = "executionId"
	bindingElapsedTime   = "elapsedTime"
	bindingExecutedNodes = "executedNodes"
)

// resolvePath looks up a dot path against the execution context. The first
// segment is resolved from variables, then metadata, then the reserved
// bindings. Remaining segments are followed into the value via its JSON
// form, which handles maps, structs, and slices uniformly.
func resolvePath(execCtx *ExecutionContext, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || execCtx == nil {
		return nil, false
	}

	head, rest, _ := strings.Cut(path, ".")

	root, ok := resolveRoot(execCtx, head)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return root, true
	}
	return lookupField(root, rest)
}

func resolveRoot(execCtx *ExecutionContext, name string) (any, bool) {
	if v, ok := execCtx.Variable(name); ok {
		return v, true
	}
	if v, ok := execCtx.Metadata(name); ok {
		return v, true
	}
	switch name {
	case bindingInput:
		return execCtx.Input(), true
	case bindingExecutionID:
		return execCtx.ExecutionID(), true
	case bindingElapsedTime:
		return float64(execCtx.Elapsed().Milliseconds()), true
	case bindingExecutedNodes:
		ids := execCtx.ExecutedNodes()
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return out, true
	}
	return nil, false
}

// lookupField extracts a nested field from an arbitrary value by dot path.
func lookupField(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, false
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// isTruthy implements the sub-language's notion of truth: nil and zero
// values are false, everything else is true.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// isEmptyValue reports whether a value counts as "empty" for existence
// checks: nil, empty string, empty slice, or empty map.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// toFloat coerces the numeric types that flow through JSON decoding and
// caller-supplied literals into a float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
