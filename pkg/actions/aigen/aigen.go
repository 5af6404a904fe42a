// Package aigen provides the AI-assisted text generation handler, backed by
// the Generator capability.
package aigen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopworklabs/loopwork/pkg/capabilities"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

type Handler struct {
	generator capabilities.Generator
	logger    *slog.Logger
}

func NewHandler(generator capabilities.Generator, logger *slog.Logger) *Handler {
	return &Handler{
		generator: generator,
		logger:    logger.With("module", "actions", "action_type", "generate"),
	}
}

func (h *Handler) Type() string { return "generate" }

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"prompt"},
		"properties": map[string]any{
			"prompt":         map[string]any{"type": "string", "minLength": 1},
			"options":        map[string]any{"type": "object"},
			"outputVariable": map[string]any{"type": "string"},
		},
	}
}

// Execute renders the prompt against the context and calls the generator.
// When outputVariable is set, the generated text also lands in the
// execution's variables so templates can reference it by name.
func (h *Handler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	prompt := template.RenderString(stringValue(config["prompt"]), ectx)
	if strings.TrimSpace(prompt) == "" {
		return models.Fail(models.ErrorKindValidation, "prompt resolved to empty string")
	}

	options, _ := config["options"].(map[string]any)

	text, err := h.generator.Generate(ctx, ectx.OrganizationID, prompt, options)
	if err != nil {
		return models.Fail(models.ErrorKindTransient, fmt.Sprintf("text generation: %v", err))
	}

	if name := stringValue(config["outputVariable"]); name != "" {
		ectx.SetVariable(name, text)
	}

	return models.Continue(map[string]any{"text": text})
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
