// Package schedule provides the scheduled-resume timing handler. Where wait
// expresses "pause for this long", schedule expresses "resume at this
// instant": a fixed datetime, an offset from now, the next business day, or
// the next firing of a cron expression.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

type Handler struct {
	logger *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger.With("module", "actions", "action_type", "schedule"),
		now:    time.Now,
	}
}

func (h *Handler) Type() string { return "schedule" }

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"scheduleType"},
		"properties": map[string]any{
			"scheduleType": map[string]any{
				"type": "string",
				"enum": []string{"specific", "relative", "nextBusinessDay", "cron"},
			},
			"datetime":   map[string]any{"type": "string"},
			"offset":     map[string]any{"type": "number"},
			"unit":       map[string]any{"type": "string", "enum": []string{"seconds", "minutes", "hours", "days", "weeks"}},
			"time":       map[string]any{"type": "string", "pattern": `^\d{2}:\d{2}$`},
			"expression": map[string]any{"type": "string"},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	scheduleType, _ := config["scheduleType"].(string)
	now := h.now()

	var (
		resumeAt time.Time
		err      error
	)

	switch scheduleType {
	case "specific":
		resumeAt, err = h.specificTime(config, ectx)
	case "relative":
		resumeAt, err = relativeTime(now, config)
	case "nextBusinessDay":
		resumeAt, err = nextBusinessDay(now, stringValue(config["time"]))
	case "cron":
		resumeAt, err = nextCronFiring(now, stringValue(config["expression"]))
	default:
		err = fmt.Errorf("unknown schedule type %q", scheduleType)
	}

	if err != nil {
		return models.Fail(models.ErrorKindValidation, err.Error())
	}

	if !resumeAt.After(now) {
		return models.Fail(models.ErrorKindValidation,
			fmt.Sprintf("scheduled time %s is not in the future", resumeAt.Format(time.RFC3339)))
	}

	h.logger.DebugContext(ctx, "Suspending execution until schedule",
		"execution_id", ectx.ExecutionID, "resume_at", resumeAt)

	return models.Suspend(map[string]any{"resume_at": resumeAt.Format(time.RFC3339)}, resumeAt)
}

func (h *Handler) specificTime(config map[string]any, ectx *models.ExecutionContext) (time.Time, error) {
	raw := template.RenderString(stringValue(config["datetime"]), ectx)
	if raw == "" || template.HasToken(raw) {
		return time.Time{}, fmt.Errorf("datetime did not resolve to a value")
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable datetime %q: %w", raw, err)
	}

	return parsed, nil
}

var unitMultipliers = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

func relativeTime(now time.Time, config map[string]any) (time.Time, error) {
	offset, ok := config["offset"].(float64)
	if !ok || offset <= 0 {
		return time.Time{}, fmt.Errorf("offset must be a positive number")
	}

	unit := stringValue(config["unit"])

	multiplier, ok := unitMultipliers[unit]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown schedule unit %q", unit)
	}

	return now.Add(time.Duration(offset * float64(multiplier))), nil
}

// nextBusinessDay resolves to hh:mm on the next weekday strictly after now.
// An empty time of day defaults to 09:00.
func nextBusinessDay(now time.Time, timeOfDay string) (time.Time, error) {
	hour, minute := 9, 0

	if timeOfDay != "" {
		parts := strings.SplitN(timeOfDay, ":", 2)
		if len(parts) != 2 {
			return time.Time{}, fmt.Errorf("unparseable time of day %q", timeOfDay)
		}

		var err error
		if hour, err = strconv.Atoi(parts[0]); err != nil || hour < 0 || hour > 23 {
			return time.Time{}, fmt.Errorf("unparseable time of day %q", timeOfDay)
		}

		if minute, err = strconv.Atoi(parts[1]); err != nil || minute < 0 || minute > 59 {
			return time.Time{}, fmt.Errorf("unparseable time of day %q", timeOfDay)
		}
	}

	next := now.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, now.Location()), nil
}

func nextCronFiring(now time.Time, expression string) (time.Time, error) {
	if expression == "" {
		return time.Time{}, fmt.Errorf("cron schedule requires an expression")
	}

	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable cron expression %q: %w", expression, err)
	}

	return schedule.Next(now), nil
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
