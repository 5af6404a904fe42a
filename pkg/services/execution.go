package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loopworklabs/loopwork/pkg/dedupe"
	"github.com/loopworklabs/loopwork/pkg/eventbus"
	"github.com/loopworklabs/loopwork/pkg/events"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

// StartRequest is one trigger event arriving at the API. EventID is the
// provider's delivery ID; when present it deduplicates redeliveries inside
// the dedupe TTL window.
type StartRequest struct {
	OrganizationID string         `validate:"required"`
	WorkflowID     string         `validate:"required"`
	EventID        string
	TriggerData    map[string]any
}

// ExecutionService owns the execution lifecycle as seen from the API:
// starting runs from trigger events, cancelling, and inspection.
type ExecutionService struct {
	store     persistence.Persistence
	deduper   dedupe.Store
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewExecutionService(store persistence.Persistence, deduper dedupe.Store, publisher eventbus.EventPublisher, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		store:     store,
		deduper:   deduper,
		publisher: publisher,
		logger:    logger.With("module", "execution_service"),
	}
}

// Start creates a pending execution for a trigger event and announces it on
// the bus for a worker to claim. Inactive workflows reject the trigger;
// redelivered events inside the dedupe window return ErrDuplicateTrigger.
func (s *ExecutionService) Start(ctx context.Context, req StartRequest) (*models.Execution, error) {
	workflow, err := s.store.Workflows().ByID(ctx, req.OrganizationID, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.IsActive() {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, ErrWorkflowInactive)
	}

	if req.EventID != "" && s.deduper != nil {
		first, err := s.deduper.FirstSeen(ctx, req.OrganizationID, dedupe.Key(req.WorkflowID, req.EventID), dedupe.DefaultTTL)
		if err != nil {
			// Dedupe store unavailability must not drop triggers.
			s.logger.WarnContext(ctx, "Dedupe check failed, accepting trigger",
				"workflow_id", req.WorkflowID, "event_id", req.EventID, "error", err)
		} else if !first {
			return nil, fmt.Errorf("event %s: %w", req.EventID, ErrDuplicateTrigger)
		}
	}

	id := uuid.New().String()
	execution := &models.Execution{
		ID:             id,
		WorkflowID:     workflow.ID,
		OrganizationID: req.OrganizationID,
		Status:         models.ExecutionStatusPending,
		Context:        models.NewExecutionContext(id, workflow.ID, req.OrganizationID, req.TriggerData, workflow.Variables),
		StartedAt:      time.Now().UTC(),
	}

	if err := s.store.Executions().Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	s.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent: events.BaseEvent{
			ID:             uuid.New().String(),
			Type:           events.ExecutionStartedEvent,
			Timestamp:      time.Now().UTC(),
			OrganizationID: execution.OrganizationID,
			WorkflowID:     execution.WorkflowID,
		},
		ExecutionID: execution.ID,
		TriggerData: req.TriggerData,
	})

	s.logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID, "workflow_id", workflow.ID, "organization_id", req.OrganizationID)

	return execution, nil
}

// Cancel marks the execution cancelled. A walker holding the claim observes
// the status cooperatively and stops before its next node.
func (s *ExecutionService) Cancel(ctx context.Context, organizationID, id string) error {
	return s.store.Executions().Cancel(ctx, organizationID, id)
}

// FetchByID retrieves one execution, tenant-scoped.
func (s *ExecutionService) FetchByID(ctx context.Context, organizationID, id string) (*models.Execution, error) {
	return s.store.Executions().ByID(ctx, organizationID, id)
}

// ListByWorkflow retrieves the executions of one workflow.
func (s *ExecutionService) ListByWorkflow(ctx context.Context, organizationID, workflowID string) ([]*models.Execution, error) {
	return s.store.Executions().ListByWorkflow(ctx, organizationID, workflowID)
}

// Activities retrieves the per-node audit trail of one execution.
func (s *ExecutionService) Activities(ctx context.Context, organizationID, executionID string) ([]*models.ActivityEntry, error) {
	return s.store.Activities().ListByExecution(ctx, organizationID, executionID)
}

func (s *ExecutionService) publish(ctx context.Context, execution *models.Execution, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, execution.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Event publish failed",
			"execution_id", execution.ID, "event_type", event.GetType(), "error", err)
	}
}
