package postgres

import (
	"context"
	"database/sql"

	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/persistence"
)

type activityRepository struct {
	db *sql.DB
}

func (r *activityRepository) Append(ctx context.Context, entry *models.ActivityEntry) error {
	query := `
		INSERT INTO activities (
			id, organization_id, workflow_id, execution_id, node_id,
			action_type, status, error, kind, attempt, duration_ms, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OrganizationID, entry.WorkflowID, entry.ExecutionID, entry.NodeID,
		entry.ActionType, entry.Status, entry.Error, entry.Kind, entry.Attempt,
		entry.DurationMs, entry.RecordedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("AppendActivity", entry.ExecutionID, err)
	}

	return nil
}

func (r *activityRepository) ListByExecution(ctx context.Context, organizationID, executionID string) ([]*models.ActivityEntry, error) {
	query := `
		SELECT id, organization_id, workflow_id, execution_id, node_id,
			action_type, status, error, kind, attempt, duration_ms, recorded_at
		FROM activities
		WHERE organization_id = $1 AND execution_id = $2
		ORDER BY recorded_at`

	rows, err := r.db.QueryContext(ctx, query, organizationID, executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("ListActivities", executionID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.ActivityEntry

	for rows.Next() {
		var entry models.ActivityEntry

		err := rows.Scan(
			&entry.ID, &entry.OrganizationID, &entry.WorkflowID, &entry.ExecutionID, &entry.NodeID,
			&entry.ActionType, &entry.Status, &entry.Error, &entry.Kind, &entry.Attempt,
			&entry.DurationMs, &entry.RecordedAt,
		)
		if err != nil {
			return nil, persistence.NewExecutionError("ListActivities", executionID, err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("ListActivities", executionID, err)
	}

	return entries, nil
}
