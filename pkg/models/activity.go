package models

import "time"

// ActivityEntry is one best-effort audit record of a node dispatch. Entries
// are keyed by (workflow, execution, node) and kept after failures so
// operators can diagnose without re-running.
type ActivityEntry struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	WorkflowID     string    `json:"workflow_id"`
	ExecutionID    string    `json:"execution_id"`
	NodeID         string    `json:"node_id"`
	ActionType     string    `json:"action_type"`
	Status         string    `json:"status"` // success, failure
	Error          string    `json:"error,omitempty"`
	Kind           ErrorKind `json:"kind,omitempty"`
	Attempt        int       `json:"attempt"`
	DurationMs     int64     `json:"duration_ms"`
	RecordedAt     time.Time `json:"recorded_at"`
}
