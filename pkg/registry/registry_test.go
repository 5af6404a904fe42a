package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/models"
)

type stubHandler struct {
	actionType string
	schema     map[string]any
	execute    func(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult
}

func (h *stubHandler) Type() string           { return h.actionType }
func (h *stubHandler) Schema() map[string]any { return h.schema }
func (h *stubHandler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	return h.execute(ctx, config, ectx)
}

func testContext() *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", nil, nil)
}

func actionNode(actionType string, config map[string]any) *models.Node {
	return &models.Node{
		ID:         "node-1",
		Type:       models.NodeTypeAction,
		ActionType: actionType,
		Config:     config,
		Enabled:    true,
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestDispatch_RoutesToRegisteredHandler(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubHandler{
		actionType: "send_email",
		execute: func(_ context.Context, config map[string]any, _ *models.ExecutionContext) models.NodeResult {
			return models.Continue(map[string]any{"to": config["to"]})
		},
	})

	result, err := reg.Dispatch(context.Background(), actionNode("send_email", map[string]any{"to": "a@b.c"}), testContext())
	require.NoError(t, err)
	assert.True(t, result.Success)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@b.c", output["to"])
}

func TestDispatch_UnknownActionType(t *testing.T) {
	reg := newTestRegistry()

	result, err := reg.Dispatch(context.Background(), actionNode("does_not_exist", nil), testContext())
	require.ErrorIs(t, err, ErrUnknownActionType)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindEngine, result.Kind)
}

func TestDispatch_SchemaRejectsInvalidConfig(t *testing.T) {
	reg := newTestRegistry()

	called := false
	reg.Register(&stubHandler{
		actionType: "send_sms",
		schema: map[string]any{
			"type":     "object",
			"required": []string{"to"},
			"properties": map[string]any{
				"to": map[string]any{"type": "string"},
			},
		},
		execute: func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
			called = true

			return models.Continue(nil)
		},
	})

	result, err := reg.Dispatch(context.Background(), actionNode("send_sms", map[string]any{}), testContext())
	require.NoError(t, err)
	assert.False(t, called, "handler must not run on invalid config")
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindValidation, result.Kind)
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubHandler{
		actionType: "explodes",
		execute: func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
			panic("boom")
		},
	})

	result, err := reg.Dispatch(context.Background(), actionNode("explodes", nil), testContext())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindEngine, result.Kind)
	assert.Contains(t, result.Error, "boom")
}

func TestDispatch_NonActionNodeUsesTypeKey(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubHandler{
		actionType: "condition",
		execute: func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
			return models.ContinueBranch(nil, models.BranchTrue)
		},
	})

	node := &models.Node{ID: "cond-1", Type: models.NodeTypeCondition, Enabled: true}

	result, err := reg.Dispatch(context.Background(), node, testContext())
	require.NoError(t, err)
	assert.Equal(t, models.BranchTrue, result.NextBranch)
}

func TestRegister_ReplacesExistingHandler(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubHandler{actionType: "wait", execute: func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
		return models.Fail(models.ErrorKindEngine, "old")
	}})
	reg.Register(&stubHandler{actionType: "wait", execute: func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
		return models.Continue(nil)
	}})

	result, err := reg.Dispatch(context.Background(), actionNode("wait", nil), testContext())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, reg.Types(), 1)
}
