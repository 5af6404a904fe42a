package models

import "time"

// ExecutionStatus defines the lifecycle states of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuspended ExecutionStatus = "suspended"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Execution is one run of a workflow version against one trigger event.
// OrganizationID is immutable and must match the owning workflow's; it is
// the tenant-isolation boundary enforced on every load and store.
//
// ClaimToken identifies the worker currently holding exclusive ownership.
// It is empty whenever the execution is not running.
type Execution struct {
	ID             string            `json:"id"              validate:"required"`
	WorkflowID     string            `json:"workflow_id"     validate:"required"`
	OrganizationID string            `json:"organization_id" validate:"required"`
	Status         ExecutionStatus   `json:"status"`
	CurrentNodeID  *string           `json:"current_node_id,omitempty"`
	Context        *ExecutionContext `json:"context"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	ResumeAt       *time.Time        `json:"resume_at,omitempty"`
	RetryCount     int               `json:"retry_count"`
	Retrying       bool              `json:"retrying"` // suspended node re-executes instead of advancing
	ErrorMessage   string            `json:"error_message,omitempty"`
	FailedNodeID   string            `json:"failed_node_id,omitempty"`
	ClaimToken     string            `json:"claim_token,omitempty"`
}
