package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/loopworklabs/loopwork/pkg/eventbus"
	"github.com/loopworklabs/loopwork/pkg/events"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

// Worker consumes execution.started events and runs the walker for each.
// Horizontal scale is adding workers on the same consumer group; the claim
// protocol keeps each execution on exactly one of them.
type Worker struct {
	bus    eventbus.EventBus
	walker *Walker
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewWorker(bus eventbus.EventBus, walker *Walker, logger *slog.Logger) *Worker {
	return &Worker{
		bus:    bus,
		walker: walker,
		logger: logger.With("module", "worker"),
	}
}

// Start registers the event handler and blocks consuming events until the
// context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.bus.Handle(events.ExecutionStartedEvent, func(ctx context.Context, event any) error {
		started, ok := event.(*events.ExecutionStarted)
		if !ok {
			w.logger.Warn("Unexpected payload for execution.started event")

			return nil
		}

		// Run off the consume goroutine: the walker publishes to the same
		// topic, and an in-process bus would deadlock on a busy consumer.
		w.wg.Add(1)

		go func() {
			defer w.wg.Done()
			w.run(ctx, started.ExecutionID)
		}()

		return nil
	})

	w.logger.InfoContext(ctx, "Worker started")

	if err := w.bus.Subscribe(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	w.wg.Wait()
	w.logger.Info("Worker stopped")

	return nil
}

func (w *Worker) run(ctx context.Context, executionID string) {
	err := w.walker.Run(ctx, executionID)
	switch {
	case err == nil:
	case errors.Is(err, persistence.ErrExecutionClaimed):
		w.logger.DebugContext(ctx, "Execution already claimed", "execution_id", executionID)
	default:
		w.logger.ErrorContext(ctx, "Execution run failed", "execution_id", executionID, "error", err)
	}
}
