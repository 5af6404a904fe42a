package logic

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext(trigger map[string]any) *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
}

func TestConditional_RoutesTrueBranch(t *testing.T) {
	handler := NewConditionalHandler(discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"conditions": []any{
			map[string]any{"field": "{{trigger.score}}", "operator": "greater_than", "value": float64(50)},
		},
	}, testContext(map[string]any{"score": float64(80)}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.BranchTrue, result.NextBranch)

	output := result.Output.(map[string]any)
	assert.Equal(t, true, output["result"])
}

func TestConditional_RoutesFalseBranch(t *testing.T) {
	handler := NewConditionalHandler(discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"logic": "AND",
		"conditions": []any{
			map[string]any{"field": "{{trigger.score}}", "operator": "greater_than", "value": float64(50)},
			map[string]any{"field": "{{trigger.status}}", "operator": "equals", "value": "active"},
		},
	}, testContext(map[string]any{"score": float64(80), "status": "paused"}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.BranchFalse, result.NextBranch)
}

func TestConditional_OrLogic(t *testing.T) {
	handler := NewConditionalHandler(discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"logic": "OR",
		"conditions": []any{
			map[string]any{"field": "{{trigger.score}}", "operator": "greater_than", "value": float64(90)},
			map[string]any{"field": "{{trigger.status}}", "operator": "equals", "value": "active"},
		},
	}, testContext(map[string]any{"score": float64(10), "status": "active"}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.BranchTrue, result.NextBranch)
}

func TestConditional_InvalidRegexIsValidationError(t *testing.T) {
	handler := NewConditionalHandler(discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"conditions": []any{
			map[string]any{"field": "{{trigger.email}}", "operator": "matches_regex", "value": "([unclosed"},
		},
	}, testContext(map[string]any{"email": "jo@example.com"}))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindValidation, result.Kind)
}

func TestConditional_MalformedConfig(t *testing.T) {
	handler := NewConditionalHandler(discardLogger())

	tests := []struct {
		name   string
		config map[string]any
	}{
		{"missing conditions", map[string]any{}},
		{"empty conditions", map[string]any{"conditions": []any{}}},
		{"condition missing operator", map[string]any{"conditions": []any{map[string]any{"field": "{{x}}"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := handler.Execute(context.Background(), tt.config, testContext(nil))

			assert.False(t, result.Success)
			assert.Equal(t, models.ErrorKindValidation, result.Kind)
		})
	}
}

func TestSwitch_MatchesCaseBranch(t *testing.T) {
	handler := NewSwitchHandler(discardLogger())
	config := map[string]any{
		"field": "{{trigger.plan}}",
		"cases": []any{
			map[string]any{"value": "starter", "branch": "starter"},
			map[string]any{"value": "pro", "branch": "pro"},
		},
	}

	result := handler.Execute(context.Background(), config, testContext(map[string]any{"plan": "pro"}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "pro", result.NextBranch)

	output := result.Output.(map[string]any)
	assert.Equal(t, true, output["matched"])
}

func TestSwitch_NumericCoercion(t *testing.T) {
	handler := NewSwitchHandler(discardLogger())
	config := map[string]any{
		"field": "{{trigger.tier}}",
		"cases": []any{
			map[string]any{"value": float64(2), "branch": "silver"},
		},
	}

	// Field resolves to the string "2"; matching is loose.
	result := handler.Execute(context.Background(), config, testContext(map[string]any{"tier": "2"}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "silver", result.NextBranch)
}

func TestSwitch_NoMatchRoutesDefault(t *testing.T) {
	handler := NewSwitchHandler(discardLogger())
	config := map[string]any{
		"field": "{{trigger.plan}}",
		"cases": []any{
			map[string]any{"value": "starter", "branch": "starter"},
		},
	}

	result := handler.Execute(context.Background(), config, testContext(map[string]any{"plan": "enterprise"}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.BranchDefault, result.NextBranch)

	output := result.Output.(map[string]any)
	assert.Equal(t, false, output["matched"])
}
