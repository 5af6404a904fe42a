package record

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/capabilities"
	"github.com/loopworklabs/loopwork/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore(t *testing.T) *capabilities.MemoryRecordStore {
	t.Helper()

	store := capabilities.NewMemoryRecordStore()
	store.PutRecord("org-1", &capabilities.Record{
		ID:     "c-1",
		Kind:   "contact",
		Fields: map[string]any{"name": "Jo", "score": float64(40)},
		Tags:   []string{"lead"},
	})

	return store
}

func testContext(trigger map[string]any) *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
}

func TestUpdateRecord_InterpolatesFields(t *testing.T) {
	store := seededStore(t)
	handler := NewUpdateHandler(store, discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"recordId": "{{trigger.contactId}}",
		"fields":   map[string]any{"status": "{{trigger.status}}"},
	}, testContext(map[string]any{"contactId": "c-1", "status": "won"}))

	require.True(t, result.Success, result.Error)

	record, err := store.GetRecord(context.Background(), "org-1", "contact", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "won", record.Fields["status"])
	assert.Equal(t, "Jo", record.Fields["name"])
}

func TestUpdateRecord_MissingRecordIsTenantDataError(t *testing.T) {
	handler := NewUpdateHandler(seededStore(t), discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"recordId": "nope",
		"fields":   map[string]any{"status": "won"},
	}, testContext(nil))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindTenantData, result.Kind)
}

func TestUpdateRecord_CrossTenantLookupFails(t *testing.T) {
	store := seededStore(t)
	handler := NewUpdateHandler(store, discardLogger())

	ectx := models.NewExecutionContext("exec-2", "wf-2", "org-other", nil, nil)

	result := handler.Execute(context.Background(), map[string]any{
		"recordId": "c-1",
		"fields":   map[string]any{"status": "won"},
	}, ectx)

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindTenantData, result.Kind)
}

func TestAddTag_IsIdempotent(t *testing.T) {
	store := seededStore(t)
	handler := NewAddTagHandler(store, discardLogger())
	config := map[string]any{"recordId": "c-1", "tag": "vip"}

	for range 2 {
		result := handler.Execute(context.Background(), config, testContext(nil))
		require.True(t, result.Success, result.Error)
	}

	record, err := store.GetRecord(context.Background(), "org-1", "contact", "c-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "vip"}, record.Tags)
}

func TestRemoveTag(t *testing.T) {
	store := seededStore(t)
	handler := NewRemoveTagHandler(store, discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"recordId": "c-1",
		"tag":      "lead",
	}, testContext(nil))

	require.True(t, result.Success, result.Error)

	record, err := store.GetRecord(context.Background(), "org-1", "contact", "c-1")
	require.NoError(t, err)
	assert.Empty(t, record.Tags)
}

func TestUpdateScore(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		want   float64
	}{
		{
			name:   "adjust adds delta to current value",
			config: map[string]any{"recordId": "c-1", "amount": float64(10)},
			want:   50,
		},
		{
			name:   "negative delta",
			config: map[string]any{"recordId": "c-1", "amount": float64(-15)},
			want:   25,
		},
		{
			name:   "set replaces current value",
			config: map[string]any{"recordId": "c-1", "amount": float64(99), "mode": "set"},
			want:   99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore(t)
			handler := NewScoreHandler(store, discardLogger())

			result := handler.Execute(context.Background(), tt.config, testContext(nil))
			require.True(t, result.Success, result.Error)

			record, err := store.GetRecord(context.Background(), "org-1", "contact", "c-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.Fields["score"])

			output := result.Output.(map[string]any)
			assert.Equal(t, float64(40), output["previous"])
		})
	}
}

func TestResolveTarget_EmptyIDIsValidationError(t *testing.T) {
	handler := NewScoreHandler(seededStore(t), discardLogger())

	result := handler.Execute(context.Background(), map[string]any{
		"recordId": "{{trigger.missing}}",
		"amount":   float64(5),
	}, testContext(map[string]any{}))

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindValidation, result.Kind)
}
