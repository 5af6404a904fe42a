package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/models"
)

func newTestHandler(now time.Time) *Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return now }

	return h
}

func testContext(trigger map[string]any) *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
}

func TestExecute_SpecificDatetime(t *testing.T) {
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	target := "2025-03-20T15:00:00Z"

	result := newTestHandler(now).Execute(context.Background(), map[string]any{
		"scheduleType": "specific",
		"datetime":     "{{trigger.sendAt}}",
	}, testContext(map[string]any{"sendAt": target}))

	require.True(t, result.Success, result.Error)
	assert.False(t, result.ShouldContinue)
	require.NotNil(t, result.ResumeAt)
	assert.Equal(t, target, result.ResumeAt.UTC().Format(time.RFC3339))
}

func TestExecute_SpecificDatetimeInPastRejected(t *testing.T) {
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	result := newTestHandler(now).Execute(context.Background(), map[string]any{
		"scheduleType": "specific",
		"datetime":     "2024-01-01T00:00:00Z",
	}, testContext(nil))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindValidation, result.Kind)
}

func TestExecute_RelativeOffset(t *testing.T) {
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		offset float64
		unit   string
		want   time.Time
	}{
		{"minutes", 45, "minutes", now.Add(45 * time.Minute)},
		{"hours", 2, "hours", now.Add(2 * time.Hour)},
		{"days", 3, "days", now.Add(3 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestHandler(now).Execute(context.Background(), map[string]any{
				"scheduleType": "relative",
				"offset":       tt.offset,
				"unit":         tt.unit,
			}, testContext(nil))

			require.True(t, result.Success, result.Error)
			assert.False(t, result.ShouldContinue)
			require.NotNil(t, result.ResumeAt)
			assert.Equal(t, tt.want, *result.ResumeAt)
		})
	}
}

func TestExecute_NextBusinessDay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midweek advances one day",
			now:  time.Date(2025, time.March, 11, 14, 0, 0, 0, time.UTC), // Tuesday
			want: time.Date(2025, time.March, 12, 8, 30, 0, 0, time.UTC),
		},
		{
			name: "friday skips the weekend",
			now:  time.Date(2025, time.March, 14, 14, 0, 0, 0, time.UTC), // Friday
			want: time.Date(2025, time.March, 17, 8, 30, 0, 0, time.UTC), // Monday
		},
		{
			name: "saturday lands on monday",
			now:  time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.March, 17, 8, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestHandler(tt.now).Execute(context.Background(), map[string]any{
				"scheduleType": "nextBusinessDay",
				"time":         "08:30",
			}, testContext(nil))

			require.True(t, result.Success, result.Error)
			assert.Equal(t, tt.want, *result.ResumeAt)
		})
	}
}

func TestExecute_CronExpression(t *testing.T) {
	now := time.Date(2025, time.March, 12, 10, 30, 0, 0, time.UTC)

	// Daily at midnight.
	result := newTestHandler(now).Execute(context.Background(), map[string]any{
		"scheduleType": "cron",
		"expression":   "0 0 * * *",
	}, testContext(nil))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, time.Date(2025, time.March, 13, 0, 0, 0, 0, time.UTC), *result.ResumeAt)
}

func TestExecute_InvalidConfig(t *testing.T) {
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		config map[string]any
	}{
		{"unknown type", map[string]any{"scheduleType": "someday"}},
		{"unparseable datetime", map[string]any{"scheduleType": "specific", "datetime": "tomorrow-ish"}},
		{"unresolved datetime", map[string]any{"scheduleType": "specific", "datetime": "{{trigger.missing}}"}},
		{"bad cron expression", map[string]any{"scheduleType": "cron", "expression": "not a cron"}},
		{"missing cron expression", map[string]any{"scheduleType": "cron"}},
		{"bad time of day", map[string]any{"scheduleType": "nextBusinessDay", "time": "25:99"}},
		{"negative time of day", map[string]any{"scheduleType": "nextBusinessDay", "time": "-1:30"}},
		{"negative relative offset", map[string]any{"scheduleType": "relative", "offset": -1.0, "unit": "hours"}},
		{"unknown relative unit", map[string]any{"scheduleType": "relative", "offset": 1.0, "unit": "fortnights"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestHandler(now).Execute(context.Background(), tt.config, testContext(nil))

			assert.False(t, result.Success)
			assert.Equal(t, models.ErrorKindValidation, result.Kind)
		})
	}
}
