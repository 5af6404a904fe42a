// Package registry maps action-type strings to handlers. Registration is
// open: new handlers are added at startup without touching the dispatcher,
// so the action vocabulary is not closed at compile time.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/loopworklabs/loopwork/pkg/models"
)

// ErrUnknownActionType indicates a dispatch against an unregistered action
// type. It is an engine invariant violation, not a tenant-caused error.
var ErrUnknownActionType = errors.New("unknown action type")

// ActionHandler executes one action family. Handlers are pure with respect
// to the engine: they receive config and context and describe their outcome
// in the result, never by panicking or returning Go errors for expected
// failure modes.
type ActionHandler interface {
	Type() string
	Schema() map[string]any
	Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult
}

// ActivityRecorder receives best-effort audit entries for every dispatch.
// Implementations must not block the dispatch path.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *models.ActivityEntry)
}

type Registry struct {
	logger   *slog.Logger
	handlers map[string]ActionHandler
	schemas  map[string]*gojsonschema.Schema
	recorder ActivityRecorder
}

func NewRegistry(logger *slog.Logger, recorder ActivityRecorder) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		handlers: make(map[string]ActionHandler),
		schemas:  make(map[string]*gojsonschema.Schema),
		recorder: recorder,
	}
}

// Register adds a handler under its type, replacing any previous one. The
// handler's config schema is compiled once here.
func (r *Registry) Register(handler ActionHandler) {
	r.RegisterAs(handler.Type(), handler)
}

// RegisterAs adds a handler under an explicit key. Used where a node type
// and an action type share a handler, e.g. webhook nodes dispatching to
// send_webhook.
func (r *Registry) RegisterAs(actionType string, handler ActionHandler) {
	r.handlers[actionType] = handler

	if raw := handler.Schema(); raw != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
		if err != nil {
			r.logger.Warn("Invalid handler schema, skipping config validation",
				"action_type", actionType, "error", err)

			return
		}

		r.schemas[actionType] = schema
	}
}

// Handler returns the handler registered for the action type.
func (r *Registry) Handler(actionType string) (ActionHandler, bool) {
	handler, ok := r.handlers[actionType]

	return handler, ok
}

// Types returns all registered action types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}

	return types
}

// Dispatch resolves and runs the handler for the node's action type. The
// returned error is non-nil only for an unknown action type; every other
// outcome, including a recovered handler panic, is described in the result.
// Each dispatch is recorded to the activity log off the critical path.
func (r *Registry) Dispatch(ctx context.Context, node *models.Node, ectx *models.ExecutionContext) (models.NodeResult, error) {
	actionType := node.HandlerType()

	handler, ok := r.handlers[actionType]
	if !ok {
		return models.Fail(models.ErrorKindEngine, fmt.Sprintf("action type %q not registered", actionType)),
			fmt.Errorf("%w: %s", ErrUnknownActionType, actionType)
	}

	started := time.Now()

	if schema, ok := r.schemas[actionType]; ok {
		if result, valid := validateConfig(schema, node.Config); !valid {
			r.record(ctx, node, ectx, result, started)

			return result, nil
		}
	}

	result := r.execute(ctx, handler, node.Config, ectx)
	r.record(ctx, node, ectx, result, started)

	return result, nil
}

func (r *Registry) execute(ctx context.Context, handler ActionHandler, config map[string]any, ectx *models.ExecutionContext) (result models.NodeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Handler panicked",
				"action_type", handler.Type(),
				"execution_id", ectx.ExecutionID,
				"panic", rec,
			)

			result = models.Fail(models.ErrorKindEngine, fmt.Sprintf("handler %s panicked: %v", handler.Type(), rec))
		}
	}()

	return handler.Execute(ctx, config, ectx)
}

func validateConfig(schema *gojsonschema.Schema, config map[string]any) (models.NodeResult, bool) {
	if config == nil {
		config = map[string]any{}
	}

	outcome, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("config validation: %v", err)), false
	}

	if !outcome.Valid() {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("invalid config: %s", outcome.Errors()[0])), false
	}

	return models.NodeResult{}, true
}

func (r *Registry) record(ctx context.Context, node *models.Node, ectx *models.ExecutionContext, result models.NodeResult, started time.Time) {
	if r.recorder == nil {
		return
	}

	status := "success"
	if !result.Success {
		status = "failure"
	}

	r.recorder.Record(ctx, &models.ActivityEntry{
		ID:             uuid.New().String(),
		OrganizationID: ectx.OrganizationID,
		WorkflowID:     ectx.WorkflowID,
		ExecutionID:    ectx.ExecutionID,
		NodeID:         node.ID,
		ActionType:     node.HandlerType(),
		Status:         status,
		Error:          result.Error,
		Kind:           result.Kind,
		Attempt:        ectx.Attempt,
		DurationMs:     time.Since(started).Milliseconds(),
		RecordedAt:     time.Now().UTC(),
	})
}
