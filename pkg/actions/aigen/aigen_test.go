package aigen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/capabilities"
	"github.com/loopworklabs/loopwork/pkg/models"
)

type recordingGenerator struct {
	prompt string
	err    error
}

func (g *recordingGenerator) Generate(_ context.Context, _ string, prompt string, _ map[string]any) (string, error) {
	g.prompt = prompt

	if g.err != nil {
		return "", g.err
	}

	return "generated: " + prompt, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext(trigger map[string]any) *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
}

func TestExecute_RendersPromptAndStoresVariable(t *testing.T) {
	gen := &recordingGenerator{}
	handler := NewHandler(gen, discardLogger())
	ectx := testContext(map[string]any{"name": "Jo"})

	result := handler.Execute(context.Background(), map[string]any{
		"prompt":         "Write a follow-up for {{trigger.name}}",
		"outputVariable": "followUp",
	}, ectx)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Write a follow-up for Jo", gen.prompt)

	output := result.Output.(map[string]any)
	assert.Equal(t, "generated: Write a follow-up for Jo", output["text"])
	assert.Equal(t, "generated: Write a follow-up for Jo", ectx.Variables["followUp"])
}

func TestExecute_GeneratorErrorIsTransient(t *testing.T) {
	handler := NewHandler(&recordingGenerator{err: errors.New("model overloaded")}, discardLogger())

	result := handler.Execute(context.Background(), map[string]any{"prompt": "hi"}, testContext(nil))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindTransient, result.Kind)
}

func TestExecute_EmptyPromptIsValidationError(t *testing.T) {
	handler := NewHandler(capabilities.TemplateGenerator{}, discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"prompt": "{{trigger.subject}}",
	}, testContext(map[string]any{"subject": ""}))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindValidation, result.Kind)
}
