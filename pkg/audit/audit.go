// Package audit writes node dispatch records to the activity log without
// ever blocking or failing the dispatch path.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

const writeTimeout = 5 * time.Second

// Recorder hands activity entries to the repository on a background
// goroutine. Failed writes are logged and dropped; the audit log is
// observability, not a correctness dependency.
type Recorder struct {
	repo   persistence.ActivityRepository
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewRecorder(repo persistence.ActivityRepository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger.With("module", "audit"),
	}
}

// Record appends the entry asynchronously. The caller's context is not
// reused so an already-finished dispatch cannot cancel the write.
func (r *Recorder) Record(ctx context.Context, entry *models.ActivityEntry) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()

		if err := r.repo.Append(writeCtx, entry); err != nil {
			r.logger.Warn("Dropped activity entry",
				"execution_id", entry.ExecutionID,
				"node_id", entry.NodeID,
				"error", err,
			)
		}
	}()
}

// Flush waits for in-flight writes. Called on shutdown and in tests.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
