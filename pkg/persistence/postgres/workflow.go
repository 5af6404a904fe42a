package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

type workflowRepository struct {
	db *sql.DB
}

const workflowColumns = `
	id, organization_id, name, description, status, version,
	nodes, edges, variables, business_hours,
	total_executions, succeeded_executions, failed_executions, last_execution_started,
	created_at, updated_at, deleted_at`

func (r *workflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("marshal nodes: %w", err))
	}

	edges, err := json.Marshal(workflow.Edges)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("marshal edges: %w", err))
	}

	variables, err := json.Marshal(workflow.Variables)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("marshal variables: %w", err))
	}

	var businessHours []byte
	if workflow.BusinessHours != nil {
		if businessHours, err = json.Marshal(workflow.BusinessHours); err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("marshal business hours: %w", err))
		}
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			variables = EXCLUDED.variables,
			business_hours = EXCLUDED.business_hours,
			updated_at = EXCLUDED.updated_at
		WHERE workflows.organization_id = EXCLUDED.organization_id`

	now := time.Now().UTC()

	createdAt := workflow.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.OrganizationID, workflow.Name, workflow.Description,
		workflow.Status, workflow.Version, nodes, edges, variables, nullableBytes(businessHours),
		workflow.Stats.TotalExecutions, workflow.Stats.SucceededExecutions, workflow.Stats.FailedExecutions,
		workflow.Stats.LastExecutionStarted, createdAt, now, workflow.DeletedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *workflowRepository) ByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id, organizationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("ByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("ByID", id, err)
	}

	return workflow, nil
}

func (r *workflowRepository) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, persistence.NewWorkflowError("List", "", err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("List", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewWorkflowError("List", "", err)
	}

	return workflows, nil
}

func (r *workflowRepository) Delete(ctx context.Context, organizationID, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, organizationID)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *workflowRepository) RecordOutcome(ctx context.Context, organizationID, id string, succeeded bool) error {
	query := `UPDATE workflows SET
			total_executions = total_executions + 1,
			succeeded_executions = succeeded_executions + CASE WHEN $3 THEN 1 ELSE 0 END,
			failed_executions = failed_executions + CASE WHEN $3 THEN 0 ELSE 1 END,
			last_execution_started = NOW()
		WHERE id = $1 AND organization_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, organizationID, succeeded)
	if err != nil {
		return persistence.NewWorkflowError("RecordOutcome", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("RecordOutcome", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("RecordOutcome", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		nodes, edges  []byte
		variables     []byte
		businessHours []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.OrganizationID, &workflow.Name, &workflow.Description,
		&workflow.Status, &workflow.Version, &nodes, &edges, &variables, &businessHours,
		&workflow.Stats.TotalExecutions, &workflow.Stats.SucceededExecutions,
		&workflow.Stats.FailedExecutions, &workflow.Stats.LastExecutionStarted,
		&workflow.CreatedAt, &workflow.UpdatedAt, &workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edges, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}

	if variables != nil {
		if err := json.Unmarshal(variables, &workflow.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	if businessHours != nil {
		workflow.BusinessHours = &models.BusinessHours{}
		if err := json.Unmarshal(businessHours, workflow.BusinessHours); err != nil {
			return nil, fmt.Errorf("unmarshal business hours: %w", err)
		}
	}

	return &workflow, nil
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}

	return b
}
