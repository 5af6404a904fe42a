// Package services is the application layer between the HTTP API and the
// engine: workflow definition management and execution lifecycle operations.
// Handlers talk to these services only, never to repositories directly.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

type WorkflowService struct {
	store    persistence.Persistence
	validate *validator.Validate
}

func NewWorkflowService(store persistence.Persistence) *WorkflowService {
	return &WorkflowService{
		store:    store,
		validate: validator.New(),
	}
}

// HealthCheck reports the health of the persistence layer.
func (s *WorkflowService) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.store.HealthCheck(ctx); err != nil {
		return "persistence unhealthy: " + err.Error(), false
	}

	return "persistence healthy", true
}

// Create stores a new workflow in draft status. The graph may be incomplete
// at this point; structural validation runs on activation.
func (s *WorkflowService) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.Version = 1

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	if err := s.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	if err := s.store.Workflows().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces the definition of an existing workflow, bumping version.
// Identity and creation metadata are preserved from the stored row.
func (s *WorkflowService) Update(ctx context.Context, organizationID, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := s.store.Workflows().ByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.OrganizationID = existing.OrganizationID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()
	workflow.Version = existing.Version + 1
	workflow.Stats = existing.Stats

	if workflow.Status == "" {
		workflow.Status = existing.Status
	}

	if err := s.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	if workflow.Status == models.WorkflowStatusActive {
		if err := validateGraph(workflow); err != nil {
			return nil, err
		}
	}

	if err := s.store.Workflows().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID retrieves one workflow, tenant-scoped.
func (s *WorkflowService) FetchByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	return s.store.Workflows().ByID(ctx, organizationID, id)
}

// List retrieves all workflows of an organization.
func (s *WorkflowService) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	return s.store.Workflows().List(ctx, organizationID)
}

// Delete soft-deletes a workflow. Running executions of it finish on their
// own; new triggers are rejected once the delete lands.
func (s *WorkflowService) Delete(ctx context.Context, organizationID, id string) error {
	return s.store.Workflows().Delete(ctx, organizationID, id)
}

// Activate validates the graph structurally and transitions the workflow to
// active so triggers may start executions.
func (s *WorkflowService) Activate(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	workflow, err := s.store.Workflows().ByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if err := validateGraph(workflow); err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.store.Workflows().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to activate workflow: %w", err)
	}

	return workflow, nil
}

// validateGraph checks the structural invariants an executable graph must
// hold: exactly one trigger, unique node IDs, and every edge endpoint
// resolving to a node.
func validateGraph(workflow *models.Workflow) error {
	if len(workflow.Nodes) == 0 {
		return fmt.Errorf("%w: workflow has no nodes", ErrInvalidGraph)
	}

	ids := make(map[string]struct{}, len(workflow.Nodes))
	triggers := 0

	for _, node := range workflow.Nodes {
		if node.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidGraph)
		}

		if _, dup := ids[node.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %s", ErrInvalidGraph, node.ID)
		}

		ids[node.ID] = struct{}{}

		if node.Type == models.NodeTypeTrigger {
			triggers++
		}
	}

	if triggers != 1 {
		return fmt.Errorf("%w: workflow must have exactly one trigger node, has %d", ErrInvalidGraph, triggers)
	}

	for _, edge := range workflow.Edges {
		if _, ok := ids[edge.Source]; !ok {
			return fmt.Errorf("%w: edge %s references missing source %s", ErrInvalidGraph, edge.ID, edge.Source)
		}

		if _, ok := ids[edge.Target]; !ok {
			return fmt.Errorf("%w: edge %s references missing target %s", ErrInvalidGraph, edge.ID, edge.Target)
		}
	}

	return nil
}
