// Package condition evaluates typed predicates against an execution context.
// A malformed tenant-authored condition must never abort an execution:
// unknown operators log a warning and evaluate to false, and type mismatches
// coerce or yield false instead of erroring. The one exception is an invalid
// regular expression, which is a handler-level error.
package condition

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

// ValueType controls whether the comparison value is interpolated.
const ValueTypeDynamic = "dynamic"

// Logic combines sub-conditions of a compound condition.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition is one predicate. Field is always interpolated; Value only when
// ValueType is "dynamic".
type Condition struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"`
	Value     any    `json:"value,omitempty"`
	ValueType string `json:"value_type,omitempty"`
}

// Compound combines conditions under a single AND/OR with short-circuit
// evaluation.
type Compound struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logger.With("module", "condition")}
}

// Evaluate resolves the condition's operands against the context and applies
// the operator.
func (e *Evaluator) Evaluate(cond Condition, ectx *models.ExecutionContext) (bool, error) {
	field := resolveField(cond.Field, ectx)

	value := cond.Value
	if cond.ValueType == ValueTypeDynamic {
		if s, ok := value.(string); ok {
			value = template.Render(s, ectx)
		}
	}

	switch cond.Operator {
	case "equals", "eq":
		return looseEqual(field, value), nil
	case "not_equals", "ne":
		return !looseEqual(field, value), nil
	case "strict_equals":
		return strictEqual(field, value), nil
	case "greater_than":
		return compareNumeric(field, value, func(a, b float64) bool { return a > b }), nil
	case "greater_than_or_equal":
		return compareNumeric(field, value, func(a, b float64) bool { return a >= b }), nil
	case "less_than":
		return compareNumeric(field, value, func(a, b float64) bool { return a < b }), nil
	case "less_than_or_equal":
		return compareNumeric(field, value, func(a, b float64) bool { return a <= b }), nil
	case "contains":
		return strings.Contains(template.Stringify(field), template.Stringify(value)), nil
	case "not_contains":
		return !strings.Contains(template.Stringify(field), template.Stringify(value)), nil
	case "starts_with":
		return strings.HasPrefix(template.Stringify(field), template.Stringify(value)), nil
	case "ends_with":
		return strings.HasSuffix(template.Stringify(field), template.Stringify(value)), nil
	case "matches_regex":
		pattern, err := regexp.Compile(template.Stringify(value))
		if err != nil {
			return false, fmt.Errorf("invalid regex pattern %q: %w", template.Stringify(value), err)
		}

		return pattern.MatchString(template.Stringify(field)), nil
	case "in":
		return membership(field, value), nil
	case "not_in":
		list, ok := value.([]any)
		if !ok {
			return false, nil
		}

		return !contains(list, field), nil
	case "exists", "is_set":
		return isSet(field), nil
	case "is_empty":
		return isEmpty(field), nil
	case "is_not_empty":
		return !isEmpty(field), nil
	case "is_true":
		b, ok := asBool(field)

		return ok && b, nil
	case "is_false":
		b, ok := asBool(field)

		return ok && !b, nil
	default:
		e.logger.Warn("Unknown condition operator", "operator", cond.Operator, "field", cond.Field)

		return false, nil
	}
}

// EvaluateCompound applies the compound's logic with short-circuit: AND stops
// at the first false, OR at the first true. An empty condition list is true.
func (e *Evaluator) EvaluateCompound(compound Compound, ectx *models.ExecutionContext) (bool, error) {
	logic := compound.Logic
	if logic == "" {
		logic = LogicAnd
	}

	for _, cond := range compound.Conditions {
		result, err := e.Evaluate(cond, ectx)
		if err != nil {
			return false, err
		}

		if logic == LogicAnd && !result {
			return false, nil
		}

		if logic == LogicOr && result {
			return true, nil
		}
	}

	return logic == LogicAnd, nil
}

// resolveField keeps presence semantics intact: a single-token field that
// does not resolve yields nil (undefined) rather than the verbatim token.
func resolveField(field string, ectx *models.ExecutionContext) any {
	trimmed := strings.TrimSpace(field)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") && strings.Count(trimmed, "{{") == 1 {
		value, ok := ectx.Lookup(strings.TrimSpace(trimmed[2 : len(trimmed)-2]))
		if !ok {
			return nil
		}

		return value
	}

	if template.HasToken(field) {
		return template.Render(field, ectx)
	}

	// A bare field name addresses the context directly.
	if value, ok := ectx.Lookup(field); ok {
		return value
	}

	return field
}

// LooseEqual reports type-coercing equality, the same relation the equals
// operator uses. Exposed for switch-case matching.
func LooseEqual(a, b any) bool {
	return looseEqual(a, b)
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if na, aok := asNumber(a); aok {
		if nb, bok := asNumber(b); bok {
			return na == nb
		}
	}

	if ba, aok := a.(bool); aok {
		if bb, bok := asBool(b); bok {
			return ba == bb
		}
	}

	return template.Stringify(a) == template.Stringify(b)
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}

	return reflect.DeepEqual(a, b)
}

func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	na, aok := asNumber(a)
	nb, bok := asNumber(b)

	return aok && bok && cmp(na, nb)
}

func membership(field, value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}

	return contains(list, field)
}

func contains(list []any, needle any) bool {
	for _, item := range list {
		if looseEqual(item, needle) {
			return true
		}
	}

	return false
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return n, err == nil
	default:
		return 0, false
	}
}

func asBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}

		return false, false
	case float64:
		if v == 1 {
			return true, true
		}

		if v == 0 {
			return false, true
		}

		return false, false
	case int:
		if v == 1 {
			return true, true
		}

		if v == 0 {
			return false, true
		}

		return false, false
	default:
		return false, false
	}
}

func isSet(value any) bool {
	if value == nil {
		return false
	}

	if s, ok := value.(string); ok {
		return s != ""
	}

	return true
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
