package wait

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

func newTestHandler(now time.Time, hours HoursSource) *Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), hours)
	h.now = func() time.Time { return now }

	return h
}

func testContext() *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", nil, nil)
}

func TestExecute_SuspendsForDuration(t *testing.T) {
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		config map[string]any
		want   time.Time
	}{
		{
			name:   "minutes",
			config: map[string]any{"duration": float64(30), "unit": "minutes"},
			want:   now.Add(30 * time.Minute),
		},
		{
			name:   "days",
			config: map[string]any{"duration": float64(2), "unit": "days"},
			want:   now.Add(48 * time.Hour),
		},
		{
			name:   "fractional hours",
			config: map[string]any{"duration": 1.5, "unit": "hours"},
			want:   now.Add(90 * time.Minute),
		},
		{
			name:   "weeks",
			config: map[string]any{"duration": float64(1), "unit": "weeks"},
			want:   now.Add(7 * 24 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestHandler(now, nil).Execute(context.Background(), tt.config, testContext())

			require.True(t, result.Success, result.Error)
			assert.False(t, result.ShouldContinue)
			require.NotNil(t, result.ResumeAt)
			assert.Equal(t, tt.want, *result.ResumeAt)
		})
	}
}

func TestExecute_BusinessHoursRollToMonday(t *testing.T) {
	// Friday 16:30 plus two hours lands outside the window and must roll
	// to Monday 09:00.
	friday := time.Date(2025, time.March, 14, 16, 30, 0, 0, time.UTC)
	require.Equal(t, time.Friday, friday.Weekday())

	result := newTestHandler(friday, nil).Execute(context.Background(), map[string]any{
		"duration":          float64(2),
		"unit":              "hours",
		"businessHoursOnly": true,
	}, testContext())

	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.ResumeAt)

	monday := time.Date(2025, time.March, 17, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, monday, *result.ResumeAt)
}

func TestExecute_BusinessHoursInsideWindowUnchanged(t *testing.T) {
	tuesday := time.Date(2025, time.March, 11, 10, 0, 0, 0, time.UTC)

	result := newTestHandler(tuesday, nil).Execute(context.Background(), map[string]any{
		"duration":          float64(1),
		"unit":              "hours",
		"businessHoursOnly": true,
	}, testContext())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, tuesday.Add(time.Hour), *result.ResumeAt)
}

func TestExecute_WorkflowHoursOverrideDefault(t *testing.T) {
	tuesday := time.Date(2025, time.March, 11, 7, 0, 0, 0, time.UTC)

	hours := func(_ context.Context, _, _ string) *models.BusinessHours {
		return &models.BusinessHours{
			OpenHour: 6, CloseHour: 22,
			Days: []time.Weekday{time.Tuesday},
		}
	}

	result := newTestHandler(tuesday, hours).Execute(context.Background(), map[string]any{
		"duration":          float64(1),
		"unit":              "hours",
		"businessHoursOnly": true,
	}, testContext())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, tuesday.Add(time.Hour), *result.ResumeAt, "08:00 is inside the custom window")
}

func TestExecute_InvalidConfig(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		config map[string]any
	}{
		{"zero duration", map[string]any{"duration": float64(0), "unit": "hours"}},
		{"negative duration", map[string]any{"duration": float64(-1), "unit": "hours"}},
		{"missing duration", map[string]any{"unit": "hours"}},
		{"unknown unit", map[string]any{"duration": float64(1), "unit": "fortnights"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestHandler(now, nil).Execute(context.Background(), tt.config, testContext())

			assert.False(t, result.Success)
			assert.Equal(t, models.ErrorKindValidation, result.Kind)
		})
	}
}
