// Package persistence provides the storage abstraction for workflows,
// executions and activity records. Every read and write is scoped by
// organization; an implementation must never return rows across that
// boundary.
package persistence

import (
	"context"
	"time"

	"github.com/loopworklabs/loopwork/pkg/models"
)

type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Activities() ActivityRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	ByID(ctx context.Context, organizationID, id string) (*models.Workflow, error)
	List(ctx context.Context, organizationID string) ([]*models.Workflow, error)
	Delete(ctx context.Context, organizationID, id string) error

	// RecordOutcome bumps the workflow's execution counters. Best-effort;
	// callers ignore its failure.
	RecordOutcome(ctx context.Context, organizationID, id string, succeeded bool) error
}

// ExecutionRepository owns execution rows and the claim protocol. Claim and
// the guarded Save are the two operations the exactly-one-worker invariant
// rests on.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	ByID(ctx context.Context, organizationID, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, organizationID, workflowID string) ([]*models.Execution, error)

	// Claim atomically takes exclusive ownership of a pending or suspended
	// execution: only one caller observes success, all others get
	// ErrExecutionClaimed. The returned execution has status running and
	// the caller's claim token set.
	Claim(ctx context.Context, id, claimToken string) (*models.Execution, error)

	// Save persists the execution only while the caller still holds the
	// claim; a lost claim (crash recovery reassigned it, or the row was
	// cancelled and re-claimed) returns ErrClaimLost. Saving a non-running
	// status releases the claim.
	Save(ctx context.Context, execution *models.Execution, claimToken string) error

	// Due lists unclaimed suspended executions whose resume time has
	// passed, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error)

	// Cancel marks a non-terminal execution cancelled. The owning walker
	// observes the status on its next step and stops.
	Cancel(ctx context.Context, organizationID, id string) error
}

// ActivityRepository is the append-only audit log of node dispatches.
type ActivityRepository interface {
	Append(ctx context.Context, entry *models.ActivityEntry) error
	ListByExecution(ctx context.Context, organizationID, executionID string) ([]*models.ActivityEntry, error)
}
