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

type executionRepository struct {
	db *sql.DB
}

const executionColumns = `
	id, workflow_id, organization_id, status, current_node_id, context,
	claim_token, started_at, completed_at, resume_at,
	retry_count, retrying, error_message, failed_node_id`

func (r *executionRepository) Create(ctx context.Context, execution *models.Execution) error {
	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("marshal context: %w", err))
	}

	query := `
		INSERT INTO executions (` + executionColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.OrganizationID, execution.Status,
		execution.CurrentNodeID, contextJSON, execution.ClaimToken,
		execution.StartedAt, execution.CompletedAt, execution.ResumeAt,
		execution.RetryCount, execution.Retrying, execution.ErrorMessage, execution.FailedNodeID,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (r *executionRepository) ByID(ctx context.Context, organizationID, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions WHERE id = $1 AND organization_id = $2`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id, organizationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ByID", id, err)
	}

	return execution, nil
}

func (r *executionRepository) ListByWorkflow(ctx context.Context, organizationID, workflowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE organization_id = $1 AND workflow_id = $2
		ORDER BY started_at`

	rows, err := r.db.QueryContext(ctx, query, organizationID, workflowID)
	if err != nil {
		return nil, persistence.NewExecutionError("ListByWorkflow", "", err)
	}
	defer func() { _ = rows.Close() }()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewExecutionError("ListByWorkflow", "", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("ListByWorkflow", "", err)
	}

	return executions, nil
}

// Claim is a single conditional UPDATE, so the database serializes racing
// claimers and exactly one sees a row come back.
func (r *executionRepository) Claim(ctx context.Context, id, claimToken string) (*models.Execution, error) {
	query := `
		UPDATE executions
		SET status = 'running', claim_token = $2, updated_at = NOW()
		WHERE id = $1 AND claim_token = '' AND status IN ('pending', 'suspended')
		RETURNING ` + executionColumns

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id, claimToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.claimFailure(ctx, id)
		}

		return nil, persistence.NewExecutionError("Claim", id, err)
	}

	return execution, nil
}

// claimFailure distinguishes "someone else holds it" from "no such row".
func (r *executionRepository) claimFailure(ctx context.Context, id string) error {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM executions WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return persistence.NewExecutionError("Claim", id, err)
	}

	if !exists {
		return persistence.NewExecutionError("Claim", id, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionError("Claim", id, persistence.ErrExecutionClaimed)
}

func (r *executionRepository) Save(ctx context.Context, execution *models.Execution, claimToken string) error {
	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("marshal context: %w", err))
	}

	nextToken := claimToken
	if execution.Status != models.ExecutionStatusRunning {
		nextToken = ""
	}

	// The status guard lets a concurrent cancellation win: once the row is
	// cancelled this update matches nothing and the walker sees ErrClaimLost.
	query := `
		UPDATE executions SET
			status = $3, current_node_id = $4, context = $5, claim_token = $6,
			completed_at = $7, resume_at = $8, retry_count = $9, retrying = $10,
			error_message = $11, failed_node_id = $12, updated_at = NOW()
		WHERE id = $1 AND claim_token = $2 AND status != 'cancelled'`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID, claimToken, execution.Status, execution.CurrentNodeID, contextJSON,
		nextToken, execution.CompletedAt, execution.ResumeAt, execution.RetryCount,
		execution.Retrying, execution.ErrorMessage, execution.FailedNodeID,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrClaimLost)
	}

	return nil
}

func (r *executionRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'suspended' AND claim_token = '' AND resume_at <= $1
		ORDER BY resume_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, persistence.NewExecutionError("Due", "", err)
	}
	defer func() { _ = rows.Close() }()

	var due []*models.Execution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewExecutionError("Due", "", err)
		}

		due = append(due, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("Due", "", err)
	}

	return due, nil
}

func (r *executionRepository) Cancel(ctx context.Context, organizationID, id string) error {
	query := `
		UPDATE executions SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		  AND status NOT IN ('completed', 'failed', 'cancelled')`

	result, err := r.db.ExecContext(ctx, query, id, organizationID)
	if err != nil {
		return persistence.NewExecutionError("Cancel", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Cancel", id, err)
	}

	if affected > 0 {
		return nil
	}

	// Nothing matched: either missing, cross-tenant, or already terminal.
	var status string

	err = r.db.QueryRowContext(ctx,
		"SELECT status FROM executions WHERE id = $1 AND organization_id = $2", id, organizationID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewExecutionError("Cancel", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return persistence.NewExecutionError("Cancel", id, err)
	}

	return persistence.NewExecutionError("Cancel", id, persistence.ErrExecutionTerminal)
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		contextJSON []byte
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.OrganizationID, &execution.Status,
		&execution.CurrentNodeID, &contextJSON, &execution.ClaimToken,
		&execution.StartedAt, &execution.CompletedAt, &execution.ResumeAt,
		&execution.RetryCount, &execution.Retrying, &execution.ErrorMessage, &execution.FailedNodeID,
	)
	if err != nil {
		return nil, err
	}

	execution.Context = &models.ExecutionContext{}
	if err := json.Unmarshal(contextJSON, execution.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}

	return &execution, nil
}
