package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworklabs/loopwork/pkg/events"
)

func TestPublishSubscribe_RoundTrip(t *testing.T) {
	bus := NewGoChannelEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() { _ = bus.Close() }()

	received := make(chan *events.ExecutionStarted, 1)

	bus.Handle(events.ExecutionStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.ExecutionStarted)
		require.True(t, ok)
		received <- started

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "exec-1", events.ExecutionStarted{
		BaseEvent: events.BaseEvent{
			ID:             bus.GenerateID(),
			Type:           events.ExecutionStartedEvent,
			Timestamp:      time.Now().UTC(),
			OrganizationID: "org-1",
			WorkflowID:     "wf-1",
		},
		ExecutionID: "exec-1",
		TriggerData: map[string]any{"score": float64(80)},
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "exec-1", event.ExecutionID)
		assert.Equal(t, "org-1", event.OrganizationID)
		assert.Equal(t, float64(80), event.TriggerData["score"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribe_UnhandledTypesAreAcked(t *testing.T) {
	bus := NewGoChannelEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer func() { _ = bus.Close() }()

	completed := make(chan struct{}, 1)

	bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, _ any) error {
		completed <- struct{}{}

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// An event nobody registered for must not wedge the stream.
	require.NoError(t, bus.Publish(ctx, "exec-1", events.ExecutionResumed{ExecutionID: "exec-1"}))
	require.NoError(t, bus.Publish(ctx, "exec-1", events.ExecutionCompleted{ExecutionID: "exec-1"}))

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
