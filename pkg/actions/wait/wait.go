// Package wait provides the relative-delay timing handler. A wait node
// suspends its execution for duration*unit, optionally snapped into the
// workflow's business hours window.
package wait

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loopworklabs/loopwork/pkg/models"
)

var unitMultipliers = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// HoursSource resolves the business hours window configured on a workflow.
// A nil window means the workflow has none and the default applies.
type HoursSource func(ctx context.Context, organizationID, workflowID string) *models.BusinessHours

type Handler struct {
	logger *slog.Logger
	hours  HoursSource

	// now is swapped in tests.
	now func() time.Time
}

func NewHandler(logger *slog.Logger, hours HoursSource) *Handler {
	return &Handler{
		logger: logger.With("module", "actions", "action_type", "wait"),
		hours:  hours,
		now:    time.Now,
	}
}

func (h *Handler) Type() string { return "wait" }

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"duration", "unit"},
		"properties": map[string]any{
			"duration":          map[string]any{"type": "number"},
			"unit":              map[string]any{"type": "string", "enum": []string{"seconds", "minutes", "hours", "days", "weeks"}},
			"businessHoursOnly": map[string]any{"type": "boolean"},
		},
	}
}

// Execute computes the resume instant and suspends. The delay counts
// wall-clock time first; businessHoursOnly then snaps the landing point
// forward into the window, so a two hour wait late on Friday resumes at the
// next Monday opening.
func (h *Handler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	duration, ok := config["duration"].(float64)
	if !ok || duration <= 0 {
		return models.Fail(models.ErrorKindValidation, "duration must be a positive number")
	}

	unit, _ := config["unit"].(string)

	multiplier, ok := unitMultipliers[unit]
	if !ok {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("unknown wait unit %q", unit))
	}

	resumeAt := h.now().Add(time.Duration(duration * float64(multiplier)))

	if businessOnly, _ := config["businessHoursOnly"].(bool); businessOnly {
		resumeAt = h.window(ctx, ectx).Adjust(resumeAt)
	}

	h.logger.DebugContext(ctx, "Suspending execution",
		"execution_id", ectx.ExecutionID, "resume_at", resumeAt)

	return models.Suspend(map[string]any{"resume_at": resumeAt.Format(time.RFC3339)}, resumeAt)
}

func (h *Handler) window(ctx context.Context, ectx *models.ExecutionContext) *models.BusinessHours {
	if h.hours != nil {
		if custom := h.hours(ctx, ectx.OrganizationID, ectx.WorkflowID); custom != nil {
			return custom
		}
	}

	return models.DefaultBusinessHours()
}
