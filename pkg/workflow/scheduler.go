package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loopworklabs/loopwork/pkg/persistence"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultDueBatch       = 50
	defaultResumeParallel = 8
)

// Scheduler polls for suspended executions whose resume time has passed and
// hands each to a walker. Multiple scheduler instances may run against the
// same store; the claim protocol makes concurrent resumes of one execution
// a no-op for the losers.
type Scheduler struct {
	store    persistence.Persistence
	walker   *Walker
	logger   *slog.Logger
	interval time.Duration
	batch    int
	sem      chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(store persistence.Persistence, walker *Walker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		walker:   walker,
		logger:   logger.With("module", "scheduler"),
		interval: defaultPollInterval,
		batch:    defaultDueBatch,
		sem:      make(chan struct{}, defaultResumeParallel),
	}
}

// Start polls until the context is cancelled, then waits for in-flight
// resumes to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Scheduler started", "poll_interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.poll(ctx)

		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("Scheduler stopped")

			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.store.Executions().Due(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "Due poll failed", "error", err)

		return
	}

	for _, execution := range due {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		s.wg.Add(1)

		go func(executionID string) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			err := s.walker.Run(ctx, executionID)
			switch {
			case err == nil:
			case errors.Is(err, persistence.ErrExecutionClaimed):
				s.logger.DebugContext(ctx, "Execution already claimed", "execution_id", executionID)
			default:
				s.logger.ErrorContext(ctx, "Resume failed", "execution_id", executionID, "error", err)
			}
		}(execution.ID)
	}
}
