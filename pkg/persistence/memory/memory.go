// Package memory provides the in-process persistence implementation used in
// development setups and tests. All state lives behind one mutex; records
// are cloned on the way in and out so callers never share memory with the
// store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

type Persistence struct {
	workflows  *workflowRepository
	executions *executionRepository
	activities *activityRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  &workflowRepository{items: make(map[string]*models.Workflow)},
		executions: &executionRepository{items: make(map[string]*models.Execution)},
		activities: &activityRepository{},
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) Activities() persistence.ActivityRepository  { return p.activities }

func (p *Persistence) HealthCheck(ctx context.Context) error { return nil }
func (p *Persistence) Close(ctx context.Context) error       { return nil }

type workflowRepository struct {
	mu    sync.RWMutex
	items map[string]*models.Workflow
}

func (r *workflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	clone, err := cloneWorkflow(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[workflow.ID] = clone

	return nil
}

func (r *workflowRepository) ByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.items[id]
	if !ok || workflow.OrganizationID != organizationID || workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("ByID", id, persistence.ErrWorkflowNotFound)
	}

	return cloneWorkflow(workflow)
}

func (r *workflowRepository) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var workflows []*models.Workflow

	for _, workflow := range r.items {
		if workflow.OrganizationID != organizationID || workflow.DeletedAt != nil {
			continue
		}

		clone, err := cloneWorkflow(workflow)
		if err != nil {
			return nil, persistence.NewWorkflowError("List", workflow.ID, err)
		}

		workflows = append(workflows, clone)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].CreatedAt.Before(workflows[j].CreatedAt) })

	return workflows, nil
}

func (r *workflowRepository) Delete(ctx context.Context, organizationID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, ok := r.items[id]
	if !ok || workflow.OrganizationID != organizationID || workflow.DeletedAt != nil {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now

	return nil
}

func (r *workflowRepository) RecordOutcome(ctx context.Context, organizationID, id string, succeeded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, ok := r.items[id]
	if !ok || workflow.OrganizationID != organizationID {
		return persistence.NewWorkflowError("RecordOutcome", id, persistence.ErrWorkflowNotFound)
	}

	workflow.Stats.TotalExecutions++
	if succeeded {
		workflow.Stats.SucceededExecutions++
	} else {
		workflow.Stats.FailedExecutions++
	}

	return nil
}

type executionRepository struct {
	mu    sync.Mutex
	items map[string]*models.Execution
}

func (r *executionRepository) Create(ctx context.Context, execution *models.Execution) error {
	clone, err := cloneExecution(execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[execution.ID]; exists {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("execution already exists"))
	}

	r.items[execution.ID] = clone

	return nil
}

func (r *executionRepository) ByID(ctx context.Context, organizationID, id string) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, ok := r.items[id]
	if !ok || execution.OrganizationID != organizationID {
		return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
	}

	return cloneExecution(execution)
}

func (r *executionRepository) ListByWorkflow(ctx context.Context, organizationID, workflowID string) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var executions []*models.Execution

	for _, execution := range r.items {
		if execution.OrganizationID != organizationID || execution.WorkflowID != workflowID {
			continue
		}

		clone, err := cloneExecution(execution)
		if err != nil {
			return nil, persistence.NewExecutionError("ListByWorkflow", execution.ID, err)
		}

		executions = append(executions, clone)
	}

	sort.Slice(executions, func(i, j int) bool { return executions[i].StartedAt.Before(executions[j].StartedAt) })

	return executions, nil
}

// Claim is the compare-and-swap the double-execution invariant rests on:
// the whole check-and-set runs under the store mutex, so exactly one of any
// number of concurrent claimers wins.
func (r *executionRepository) Claim(ctx context.Context, id, claimToken string) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, ok := r.items[id]
	if !ok {
		return nil, persistence.NewExecutionError("Claim", id, persistence.ErrExecutionNotFound)
	}

	claimable := execution.Status == models.ExecutionStatusPending || execution.Status == models.ExecutionStatusSuspended
	if !claimable || execution.ClaimToken != "" {
		return nil, persistence.NewExecutionError("Claim", id, persistence.ErrExecutionClaimed)
	}

	execution.Status = models.ExecutionStatusRunning
	execution.ClaimToken = claimToken

	return cloneExecution(execution)
}

func (r *executionRepository) Save(ctx context.Context, execution *models.Execution, claimToken string) error {
	clone, err := cloneExecution(execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[execution.ID]
	if !ok {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionNotFound)
	}

	if stored.ClaimToken != claimToken {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrClaimLost)
	}

	// Cancellation may land while the walker holds the claim; it wins.
	if stored.Status == models.ExecutionStatusCancelled {
		clone.Status = models.ExecutionStatusCancelled
	}

	clone.ClaimToken = claimToken
	if clone.Status != models.ExecutionStatusRunning {
		clone.ClaimToken = ""
	}

	r.items[execution.ID] = clone

	return nil
}

func (r *executionRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.Execution

	for _, execution := range r.items {
		if execution.Status != models.ExecutionStatusSuspended || execution.ClaimToken != "" {
			continue
		}

		if execution.ResumeAt == nil || execution.ResumeAt.After(now) {
			continue
		}

		clone, err := cloneExecution(execution)
		if err != nil {
			return nil, persistence.NewExecutionError("Due", execution.ID, err)
		}

		due = append(due, clone)
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(*due[j].ResumeAt) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *executionRepository) Cancel(ctx context.Context, organizationID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, ok := r.items[id]
	if !ok || execution.OrganizationID != organizationID {
		return persistence.NewExecutionError("Cancel", id, persistence.ErrExecutionNotFound)
	}

	if execution.Status.Terminal() {
		return persistence.NewExecutionError("Cancel", id, persistence.ErrExecutionTerminal)
	}

	execution.Status = models.ExecutionStatusCancelled

	return nil
}

type activityRepository struct {
	mu      sync.Mutex
	entries []*models.ActivityEntry
}

func (r *activityRepository) Append(ctx context.Context, entry *models.ActivityEntry) error {
	clone := *entry

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, &clone)

	return nil
}

func (r *activityRepository) ListByExecution(ctx context.Context, organizationID, executionID string) ([]*models.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []*models.ActivityEntry

	for _, entry := range r.entries {
		if entry.OrganizationID != organizationID || entry.ExecutionID != executionID {
			continue
		}

		clone := *entry
		entries = append(entries, &clone)
	}

	return entries, nil
}

func cloneWorkflow(workflow *models.Workflow) (*models.Workflow, error) {
	return cloneJSON(workflow)
}

func cloneExecution(execution *models.Execution) (*models.Execution, error) {
	return cloneJSON(execution)
}

// cloneJSON deep-copies via the model's JSON form, which is also what the
// SQL backends round-trip through.
func cloneJSON[T any](value *T) (*T, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("clone marshal: %w", err)
	}

	clone := new(T)
	if err := json.Unmarshal(raw, clone); err != nil {
		return nil, fmt.Errorf("clone unmarshal: %w", err)
	}

	return clone, nil
}
