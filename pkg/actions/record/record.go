// Package record provides the CRM-style record mutation handlers:
// update_record, add_tag, remove_tag and update_score, all backed by the
// RecordStore capability and scoped to the execution's organization.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/loopworklabs/loopwork/pkg/capabilities"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

const defaultRecordKind = "contact"

type baseHandler struct {
	store  capabilities.RecordStore
	logger *slog.Logger
}

// resolveTarget extracts the record kind and interpolated record ID from the
// node config. The ID usually comes from the trigger, e.g. {{trigger.contactId}}.
func (h *baseHandler) resolveTarget(config map[string]any, ectx *models.ExecutionContext) (kind, id string, result models.NodeResult, ok bool) {
	kind = stringValue(config["recordType"])
	if kind == "" {
		kind = defaultRecordKind
	}

	id = template.RenderString(stringValue(config["recordId"]), ectx)
	if id == "" || template.HasToken(id) {
		return "", "", models.Fail(models.ErrorKindValidation, "recordId did not resolve to a value"), false
	}

	return kind, id, models.NodeResult{}, true
}

func storeFailure(err error, kind, id string) models.NodeResult {
	if errors.Is(err, capabilities.ErrRecordNotFound) {
		return models.Fail(models.ErrorKindTenantData, fmt.Sprintf("%s %s not found", kind, id))
	}

	return models.Fail(models.ErrorKindTransient, fmt.Sprintf("record store: %v", err))
}

func recordOutput(record *capabilities.Record) map[string]any {
	return map[string]any{
		"record_id": record.ID,
		"kind":      record.Kind,
		"fields":    record.Fields,
		"tags":      record.Tags,
	}
}

// UpdateHandler sets fields on a record. Field values are interpolated
// recursively, so tenants can write values like {{steps.score.total}}.
type UpdateHandler struct {
	baseHandler
}

func NewUpdateHandler(store capabilities.RecordStore, logger *slog.Logger) *UpdateHandler {
	return &UpdateHandler{baseHandler{store: store, logger: logger.With("module", "actions", "action_type", "update_record")}}
}

func (h *UpdateHandler) Type() string { return "update_record" }

func (h *UpdateHandler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"recordId", "fields"},
		"properties": map[string]any{
			"recordType": map[string]any{"type": "string"},
			"recordId":   map[string]any{"type": "string", "minLength": 1},
			"fields":     map[string]any{"type": "object", "minProperties": 1},
		},
	}
}

func (h *UpdateHandler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	kind, id, failure, ok := h.resolveTarget(config, ectx)
	if !ok {
		return failure
	}

	rawFields, _ := config["fields"].(map[string]any)

	fields, ok := template.RenderAny(rawFields, ectx).(map[string]any)
	if !ok || len(fields) == 0 {
		return models.Fail(models.ErrorKindValidation, "fields must be a non-empty object")
	}

	record, err := h.store.UpdateRecord(ctx, ectx.OrganizationID, kind, id, fields)
	if err != nil {
		return storeFailure(err, kind, id)
	}

	return models.Continue(recordOutput(record))
}

// TagHandler adds or removes a single tag. Registered twice, once per
// direction, under add_tag and remove_tag.
type TagHandler struct {
	baseHandler
	remove bool
}

func NewAddTagHandler(store capabilities.RecordStore, logger *slog.Logger) *TagHandler {
	return &TagHandler{baseHandler{store: store, logger: logger.With("module", "actions", "action_type", "add_tag")}, false}
}

func NewRemoveTagHandler(store capabilities.RecordStore, logger *slog.Logger) *TagHandler {
	return &TagHandler{baseHandler{store: store, logger: logger.With("module", "actions", "action_type", "remove_tag")}, true}
}

func (h *TagHandler) Type() string {
	if h.remove {
		return "remove_tag"
	}

	return "add_tag"
}

func (h *TagHandler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"recordId", "tag"},
		"properties": map[string]any{
			"recordType": map[string]any{"type": "string"},
			"recordId":   map[string]any{"type": "string", "minLength": 1},
			"tag":        map[string]any{"type": "string", "minLength": 1},
		},
	}
}

func (h *TagHandler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	kind, id, failure, ok := h.resolveTarget(config, ectx)
	if !ok {
		return failure
	}

	tag := template.RenderString(stringValue(config["tag"]), ectx)
	if tag == "" {
		return models.Fail(models.ErrorKindValidation, "tag resolved to empty string")
	}

	record, err := h.store.GetRecord(ctx, ectx.OrganizationID, kind, id)
	if err != nil {
		return storeFailure(err, kind, id)
	}

	tags := slices.Clone(record.Tags)
	if h.remove {
		tags = slices.DeleteFunc(tags, func(t string) bool { return t == tag })
	} else if !slices.Contains(tags, tag) {
		tags = append(tags, tag)
	}

	record, err = h.store.UpdateTags(ctx, ectx.OrganizationID, kind, id, tags)
	if err != nil {
		return storeFailure(err, kind, id)
	}

	return models.Continue(recordOutput(record))
}

// ScoreHandler adjusts a numeric field by a delta, or sets it outright when
// mode is "set". Missing or non-numeric current values count as zero.
type ScoreHandler struct {
	baseHandler
}

func NewScoreHandler(store capabilities.RecordStore, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{baseHandler{store: store, logger: logger.With("module", "actions", "action_type", "update_score")}}
}

func (h *ScoreHandler) Type() string { return "update_score" }

func (h *ScoreHandler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"recordId", "amount"},
		"properties": map[string]any{
			"recordType": map[string]any{"type": "string"},
			"recordId":   map[string]any{"type": "string", "minLength": 1},
			"field":      map[string]any{"type": "string"},
			"amount":     map[string]any{"type": "number"},
			"mode":       map[string]any{"type": "string", "enum": []string{"adjust", "set"}},
		},
	}
}

func (h *ScoreHandler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	kind, id, failure, ok := h.resolveTarget(config, ectx)
	if !ok {
		return failure
	}

	field := stringValue(config["field"])
	if field == "" {
		field = "score"
	}

	amount, ok := config["amount"].(float64)
	if !ok {
		return models.Fail(models.ErrorKindValidation, "amount must be a number")
	}

	record, err := h.store.GetRecord(ctx, ectx.OrganizationID, kind, id)
	if err != nil {
		return storeFailure(err, kind, id)
	}

	previous, _ := record.Fields[field].(float64)

	next := amount
	if stringValue(config["mode"]) != "set" {
		next = previous + amount
	}

	record, err = h.store.UpdateRecord(ctx, ectx.OrganizationID, kind, id, map[string]any{field: next})
	if err != nil {
		return storeFailure(err, kind, id)
	}

	output := recordOutput(record)
	output["previous"] = previous

	return models.Continue(output)
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
