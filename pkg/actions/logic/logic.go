// Package logic provides the branching handlers. A conditional node
// evaluates a compound predicate and routes to the true or false edge; a
// switch node matches a field against case values and routes to the named
// case branch.
package logic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopworklabs/loopwork/pkg/condition"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

type ConditionalHandler struct {
	evaluator *condition.Evaluator
	logger    *slog.Logger
}

func NewConditionalHandler(logger *slog.Logger) *ConditionalHandler {
	return &ConditionalHandler{
		evaluator: condition.NewEvaluator(logger),
		logger:    logger.With("module", "actions", "action_type", "conditional"),
	}
}

func (h *ConditionalHandler) Type() string { return "conditional" }

func (h *ConditionalHandler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"conditions"},
		"properties": map[string]any{
			"logic": map[string]any{"type": "string", "enum": []string{"AND", "OR"}},
			"conditions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"field", "operator"},
				},
			},
		},
	}
}

func (h *ConditionalHandler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	compound, err := parseCompound(config)
	if err != nil {
		return models.Fail(models.ErrorKindValidation, err.Error())
	}

	outcome, err := h.evaluator.EvaluateCompound(compound, ectx)
	if err != nil {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("condition evaluation: %v", err))
	}

	branch := models.BranchFalse
	if outcome {
		branch = models.BranchTrue
	}

	return models.ContinueBranch(map[string]any{"result": outcome}, branch)
}

func parseCompound(config map[string]any) (condition.Compound, error) {
	logic := condition.Logic(stringValue(config["logic"]))
	if logic == "" {
		logic = condition.LogicAnd
	}

	rawConditions, ok := config["conditions"].([]any)
	if !ok || len(rawConditions) == 0 {
		return condition.Compound{}, fmt.Errorf("conditions must be a non-empty array")
	}

	compound := condition.Compound{Logic: logic}

	for i, raw := range rawConditions {
		entry, ok := raw.(map[string]any)
		if !ok {
			return condition.Compound{}, fmt.Errorf("condition %d is not an object", i)
		}

		field, _ := entry["field"].(string)
		operator, _ := entry["operator"].(string)

		if field == "" || operator == "" {
			return condition.Compound{}, fmt.Errorf("condition %d is missing field or operator", i)
		}

		compound.Conditions = append(compound.Conditions, condition.Condition{
			Field:     field,
			Operator:  operator,
			Value:     entry["value"],
			ValueType: stringValue(entry["valueType"]),
		})
	}

	return compound, nil
}

// SwitchHandler routes on a field value. Cases are ordered; the first match
// wins and its branch names the outgoing edge. No match routes to default.
type SwitchHandler struct {
	logger *slog.Logger
}

func NewSwitchHandler(logger *slog.Logger) *SwitchHandler {
	return &SwitchHandler{logger: logger.With("module", "actions", "action_type", "switch")}
}

func (h *SwitchHandler) Type() string { return "switch" }

func (h *SwitchHandler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"field", "cases"},
		"properties": map[string]any{
			"field": map[string]any{"type": "string", "minLength": 1},
			"cases": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"value", "branch"},
					"properties": map[string]any{
						"branch": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
		},
	}
}

func (h *SwitchHandler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	field := stringValue(config["field"])
	if field == "" {
		return models.Fail(models.ErrorKindValidation, "switch requires a field")
	}

	rawCases, ok := config["cases"].([]any)
	if !ok || len(rawCases) == 0 {
		return models.Fail(models.ErrorKindValidation, "cases must be a non-empty array")
	}

	value := template.Render(field, ectx)

	for i, raw := range rawCases {
		entry, ok := raw.(map[string]any)
		if !ok {
			return models.Fail(models.ErrorKindValidation, fmt.Sprintf("case %d is not an object", i))
		}

		branch := stringValue(entry["branch"])
		if branch == "" {
			return models.Fail(models.ErrorKindValidation, fmt.Sprintf("case %d is missing a branch", i))
		}

		caseValue := entry["value"]
		if s, ok := caseValue.(string); ok {
			caseValue = template.Render(s, ectx)
		}

		if condition.LooseEqual(value, caseValue) {
			return models.ContinueBranch(map[string]any{
				"matched": true,
				"value":   value,
			}, branch)
		}
	}

	return models.ContinueBranch(map[string]any{
		"matched": false,
		"value":   value,
	}, models.BranchDefault)
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
