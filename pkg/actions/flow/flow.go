// Package flow provides the structural handlers that keep the graph moving
// without doing work of their own: trigger entry points, merge joins, and
// editor-only note nodes.
package flow

import (
	"context"

	"github.com/loopworklabs/loopwork/pkg/models"
)

// TriggerHandler starts a run: it surfaces the trigger payload as the entry
// node's output and advances.
type TriggerHandler struct{}

func (TriggerHandler) Type() string           { return "trigger" }
func (TriggerHandler) Schema() map[string]any { return nil }

func (TriggerHandler) Execute(_ context.Context, _ map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	return models.Continue(ectx.Trigger)
}

// MergeHandler joins converging branches. Each incoming branch reaches it
// independently; it simply advances.
type MergeHandler struct{}

func (MergeHandler) Type() string           { return "merge" }
func (MergeHandler) Schema() map[string]any { return nil }

func (MergeHandler) Execute(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
	return models.Continue(nil)
}

// NoteHandler is a no-op for editor annotation nodes that end up wired into
// the graph.
type NoteHandler struct{}

func (NoteHandler) Type() string           { return "note" }
func (NoteHandler) Schema() map[string]any { return nil }

func (NoteHandler) Execute(_ context.Context, _ map[string]any, _ *models.ExecutionContext) models.NodeResult {
	return models.Continue(nil)
}
