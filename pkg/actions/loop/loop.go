// Package loop provides the iteration handler. A loop node is revisited by
// the walker once per iteration: the graph carries an edge from the loop
// body back to the loop node, and the node routes to the "loop" branch while
// items remain, then to "done". Iteration state lives in the node's own step
// output, so a suspended execution resumes mid-loop correctly.
package loop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopworklabs/loopwork/pkg/condition"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

// Branch labels a loop node routes to.
const (
	BranchLoop = "loop"
	BranchDone = "done"
)

const defaultMaxIterations = 100

type Handler struct {
	evaluator *condition.Evaluator
	logger    *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		evaluator: condition.NewEvaluator(logger),
		logger:    logger.With("module", "actions", "action_type", "loop"),
	}
}

func (h *Handler) Type() string { return "loop" }

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source":        map[string]any{"type": "string", "minLength": 1},
			"count":         map[string]any{"type": "number", "minimum": 1},
			"maxIterations": map[string]any{"type": "number", "minimum": 1},
			"breakCondition": map[string]any{
				"type":     "object",
				"required": []string{"field", "operator"},
			},
		},
	}
}

// Execute advances the iteration. Exactly one of source (an array path) or
// count (a fixed repetition count) drives the loop; the current item and
// index are published as the "loop" variable for body nodes to reference.
func (h *Handler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	items, total, result, ok := h.resolveItems(config, ectx)
	if !ok {
		return result
	}

	maxIterations := defaultMaxIterations
	if raw, ok := config["maxIterations"].(float64); ok && raw > 0 {
		maxIterations = int(raw)
	}

	index := h.currentIndex(ectx)

	if index >= total || index >= maxIterations {
		return h.finish(ectx, index)
	}

	var item any
	if items != nil {
		item = items[index]
	} else {
		item = float64(index)
	}

	ectx.SetVariable("loop", map[string]any{
		"index": float64(index),
		"item":  item,
		"total": float64(total),
	})

	if broke, err := h.breakRequested(config, ectx); err != nil {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("break condition: %v", err))
	} else if broke {
		return h.finish(ectx, index)
	}

	return models.ContinueBranch(map[string]any{
		"index":      float64(index),
		"item":       item,
		"next_index": float64(index + 1),
		"completed":  false,
	}, BranchLoop)
}

func (h *Handler) resolveItems(config map[string]any, ectx *models.ExecutionContext) (items []any, total int, failure models.NodeResult, ok bool) {
	if source, isSet := config["source"].(string); isSet && source != "" {
		resolved := template.Render(source, ectx)

		items, isArray := resolved.([]any)
		if !isArray {
			return nil, 0, models.Fail(models.ErrorKindTenantData,
				fmt.Sprintf("loop source %q did not resolve to an array", source)), false
		}

		return items, len(items), models.NodeResult{}, true
	}

	if count, isSet := config["count"].(float64); isSet {
		if count < 1 {
			return nil, 0, models.Fail(models.ErrorKindValidation, "count must be at least 1"), false
		}

		return nil, int(count), models.NodeResult{}, true
	}

	return nil, 0, models.Fail(models.ErrorKindValidation, "loop requires a source or a count"), false
}

// currentIndex reads the iteration cursor from this node's previous output.
func (h *Handler) currentIndex(ectx *models.ExecutionContext) int {
	previous, ok := ectx.Steps[ectx.NodeID].(map[string]any)
	if !ok {
		return 0
	}

	if completed, _ := previous["completed"].(bool); completed {
		return 0
	}

	next, ok := previous["next_index"].(float64)
	if !ok {
		return 0
	}

	return int(next)
}

func (h *Handler) finish(ectx *models.ExecutionContext, iterations int) models.NodeResult {
	return models.ContinueBranch(map[string]any{
		"completed":  true,
		"iterations": float64(iterations),
	}, BranchDone)
}

func (h *Handler) breakRequested(config map[string]any, ectx *models.ExecutionContext) (bool, error) {
	raw, ok := config["breakCondition"].(map[string]any)
	if !ok {
		return false, nil
	}

	cond := condition.Condition{
		Field:    stringValue(raw["field"]),
		Operator: stringValue(raw["operator"]),
		Value:    raw["value"],
	}
	if s, ok := raw["valueType"].(string); ok {
		cond.ValueType = s
	}

	return h.evaluator.Evaluate(cond, ectx)
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
