package condition

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/models"
)

func newEvaluator() *Evaluator {
	return NewEvaluator(slog.Default())
}

func newTestContext(trigger map[string]any) *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
}

func TestEvaluate_NumericCoercionFromStringField(t *testing.T) {
	ectx := newTestContext(map[string]any{"n": "15"})

	result, err := newEvaluator().Evaluate(Condition{
		Field:    "{{n}}",
		Operator: "greater_than",
		Value:    float64(10),
	}, ectx)

	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluate_OperatorTable(t *testing.T) {
	ectx := newTestContext(map[string]any{
		"score":  float64(80),
		"name":   "Ada Lovelace",
		"plan":   "gold",
		"active": true,
		"tags":   []any{"vip", "new"},
		"blank":  "",
	})

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals loose number vs string", Condition{Field: "{{score}}", Operator: "equals", Value: "80"}, true},
		{"eq alias", Condition{Field: "{{plan}}", Operator: "eq", Value: "gold"}, true},
		{"not_equals", Condition{Field: "{{plan}}", Operator: "not_equals", Value: "silver"}, true},
		{"strict_equals type mismatch", Condition{Field: "{{score}}", Operator: "strict_equals", Value: "80"}, false},
		{"strict_equals same type", Condition{Field: "{{score}}", Operator: "strict_equals", Value: float64(80)}, true},
		{"greater_than non-numeric is false", Condition{Field: "{{name}}", Operator: "greater_than", Value: float64(1)}, false},
		{"less_than_or_equal", Condition{Field: "{{score}}", Operator: "less_than_or_equal", Value: float64(80)}, true},
		{"contains", Condition{Field: "{{name}}", Operator: "contains", Value: "Love"}, true},
		{"starts_with", Condition{Field: "{{name}}", Operator: "starts_with", Value: "Ada"}, true},
		{"ends_with", Condition{Field: "{{name}}", Operator: "ends_with", Value: "lace"}, true},
		{"in", Condition{Field: "{{plan}}", Operator: "in", Value: []any{"gold", "silver"}}, true},
		{"in with non-array value is false", Condition{Field: "{{plan}}", Operator: "in", Value: "gold"}, false},
		{"not_in", Condition{Field: "{{plan}}", Operator: "not_in", Value: []any{"bronze"}}, true},
		{"not_in with non-array value is false", Condition{Field: "{{plan}}", Operator: "not_in", Value: "bronze"}, false},
		{"exists", Condition{Field: "{{plan}}", Operator: "exists"}, true},
		{"exists on missing path", Condition{Field: "{{missing}}", Operator: "exists"}, false},
		{"is_set on empty string", Condition{Field: "{{blank}}", Operator: "is_set"}, false},
		{"is_empty empty string", Condition{Field: "{{blank}}", Operator: "is_empty"}, true},
		{"is_not_empty array", Condition{Field: "{{tags}}", Operator: "is_not_empty"}, true},
		{"is_true bool", Condition{Field: "{{active}}", Operator: "is_true"}, true},
		{"is_false on true", Condition{Field: "{{active}}", Operator: "is_false"}, false},
		{"unknown operator is false", Condition{Field: "{{plan}}", Operator: "sounds_like", Value: "gold"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newEvaluator().Evaluate(tt.cond, ectx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestEvaluate_BoolCoercions(t *testing.T) {
	ectx := newTestContext(map[string]any{
		"s1": "true",
		"s0": "false",
		"n1": float64(1),
		"n0": float64(0),
	})

	ev := newEvaluator()

	for field, want := range map[string]bool{"s1": true, "s0": false, "n1": true, "n0": false} {
		result, err := ev.Evaluate(Condition{Field: "{{" + field + "}}", Operator: "is_true"}, ectx)
		require.NoError(t, err)
		assert.Equal(t, want, result, field)
	}
}

func TestEvaluate_MatchesRegex(t *testing.T) {
	ectx := newTestContext(map[string]any{"email": "ada@example.com"})
	ev := newEvaluator()

	result, err := ev.Evaluate(Condition{
		Field:    "{{email}}",
		Operator: "matches_regex",
		Value:    `^[^@]+@example\.com$`,
	}, ectx)
	require.NoError(t, err)
	assert.True(t, result)

	_, err = ev.Evaluate(Condition{
		Field:    "{{email}}",
		Operator: "matches_regex",
		Value:    "(",
	}, ectx)
	assert.Error(t, err)
}

func TestEvaluate_DynamicValueInterpolation(t *testing.T) {
	ectx := newTestContext(map[string]any{
		"threshold": float64(50),
		"score":     float64(80),
	})

	result, err := newEvaluator().Evaluate(Condition{
		Field:     "{{score}}",
		Operator:  "greater_than",
		Value:     "{{threshold}}",
		ValueType: ValueTypeDynamic,
	}, ectx)

	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluateCompound_AndShortCircuits(t *testing.T) {
	ectx := newTestContext(map[string]any{"a": float64(1)})
	ev := newEvaluator()

	// The second condition has an invalid regex: if AND does not stop at the
	// first false, evaluation surfaces an error.
	result, err := ev.EvaluateCompound(Compound{
		Logic: LogicAnd,
		Conditions: []Condition{
			{Field: "{{a}}", Operator: "equals", Value: float64(2)},
			{Field: "{{a}}", Operator: "matches_regex", Value: "("},
		},
	}, ectx)

	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluateCompound_OrShortCircuits(t *testing.T) {
	ectx := newTestContext(map[string]any{"a": float64(1)})
	ev := newEvaluator()

	result, err := ev.EvaluateCompound(Compound{
		Logic: LogicOr,
		Conditions: []Condition{
			{Field: "{{a}}", Operator: "equals", Value: float64(1)},
			{Field: "{{a}}", Operator: "matches_regex", Value: "("},
		},
	}, ectx)

	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluateCompound_EmptyIsTrue(t *testing.T) {
	ectx := newTestContext(nil)

	result, err := newEvaluator().EvaluateCompound(Compound{Logic: LogicAnd}, ectx)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = newEvaluator().EvaluateCompound(Compound{Logic: LogicOr}, ectx)
	require.NoError(t, err)
	assert.False(t, result)
}
