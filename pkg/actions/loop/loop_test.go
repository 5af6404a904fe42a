package loop

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/models"
)

func newTestHandler() *Handler {
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func loopContext(trigger map[string]any) *models.ExecutionContext {
	ectx := models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
	ectx.NodeID = "loop-1"

	return ectx
}

// step runs one walker visit: execute, then record output like the walker does.
func step(t *testing.T, h *Handler, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	t.Helper()

	result := h.Execute(context.Background(), config, ectx)
	require.True(t, result.Success, result.Error)
	ectx.SetStep(ectx.NodeID, result.Output)

	return result
}

func TestExecute_IteratesOverSourceArray(t *testing.T) {
	handler := newTestHandler()
	ectx := loopContext(map[string]any{"items": []any{"a", "b", "c"}})
	config := map[string]any{"source": "{{trigger.items}}"}

	for i, want := range []string{"a", "b", "c"} {
		result := step(t, handler, config, ectx)
		assert.Equal(t, BranchLoop, result.NextBranch)

		output := result.Output.(map[string]any)
		assert.Equal(t, float64(i), output["index"])
		assert.Equal(t, want, output["item"])

		loopVar := ectx.Variables["loop"].(map[string]any)
		assert.Equal(t, want, loopVar["item"])
	}

	result := step(t, handler, config, ectx)
	assert.Equal(t, BranchDone, result.NextBranch)

	output := result.Output.(map[string]any)
	assert.Equal(t, true, output["completed"])
	assert.Equal(t, float64(3), output["iterations"])
}

func TestExecute_CountMode(t *testing.T) {
	handler := newTestHandler()
	ectx := loopContext(nil)
	config := map[string]any{"count": float64(2)}

	first := step(t, handler, config, ectx)
	assert.Equal(t, BranchLoop, first.NextBranch)

	second := step(t, handler, config, ectx)
	assert.Equal(t, BranchLoop, second.NextBranch)

	done := step(t, handler, config, ectx)
	assert.Equal(t, BranchDone, done.NextBranch)
}

func TestExecute_MaxIterationsCapsSource(t *testing.T) {
	handler := newTestHandler()
	ectx := loopContext(map[string]any{"items": []any{"a", "b", "c", "d"}})
	config := map[string]any{"source": "{{trigger.items}}", "maxIterations": float64(2)}

	for range 2 {
		result := step(t, handler, config, ectx)
		assert.Equal(t, BranchLoop, result.NextBranch)
	}

	result := step(t, handler, config, ectx)
	assert.Equal(t, BranchDone, result.NextBranch)
}

func TestExecute_BreakCondition(t *testing.T) {
	handler := newTestHandler()
	ectx := loopContext(map[string]any{"items": []any{float64(1), float64(5), float64(9)}})
	config := map[string]any{
		"source": "{{trigger.items}}",
		"breakCondition": map[string]any{
			"field":    "{{vars.loop.item}}",
			"operator": "greater_than",
			"value":    float64(3),
		},
	}

	first := step(t, handler, config, ectx)
	assert.Equal(t, BranchLoop, first.NextBranch)

	// Second item is 5, which trips the break condition.
	second := step(t, handler, config, ectx)
	assert.Equal(t, BranchDone, second.NextBranch)
}

func TestExecute_NonArraySourceIsTenantDataError(t *testing.T) {
	handler := newTestHandler()
	ectx := loopContext(map[string]any{"items": "not-an-array"})

	result := handler.Execute(context.Background(), map[string]any{"source": "{{trigger.items}}"}, ectx)

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindTenantData, result.Kind)
}

func TestExecute_MissingSourceAndCount(t *testing.T) {
	handler := newTestHandler()

	result := handler.Execute(context.Background(), map[string]any{}, loopContext(nil))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindValidation, result.Kind)
}
