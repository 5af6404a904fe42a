// Package models defines the core domain models for tenant workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// Workflow is a tenant-owned automation graph. A version referenced by an
// execution is immutable; the editor produces new versions instead of
// mutating published ones.
type Workflow struct {
	ID             string         `json:"id"              validate:"required"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Name           string         `json:"name"            validate:"required,min=3"`
	Description    string         `json:"description"`
	Status         WorkflowStatus `json:"status"          validate:"required"`
	Version        int            `json:"version"`
	Nodes          []*Node        `json:"nodes"`
	Edges          []*Edge        `json:"edges"`
	Variables      map[string]any `json:"variables"`
	BusinessHours  *BusinessHours `json:"business_hours,omitempty"`
	Stats          WorkflowStats  `json:"stats"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// WorkflowStats carries best-effort execution counters kept on the workflow
// row. They are advisory and never consulted by the engine itself.
type WorkflowStats struct {
	TotalExecutions      int        `json:"total_executions"`
	SucceededExecutions  int        `json:"succeeded_executions"`
	FailedExecutions     int        `json:"failed_executions"`
	LastExecutionStarted *time.Time `json:"last_execution_started,omitempty"`
}

// IsActive reports whether the workflow may be executed.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive && w.DeletedAt == nil
}

// NodeByID returns the node with the given ID, if present.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// TriggerNode returns the single trigger node of the graph, if present.
func (w *Workflow) TriggerNode() (*Node, bool) {
	for _, n := range w.Nodes {
		if n.Type == NodeTypeTrigger {
			return n, true
		}
	}

	return nil, false
}

// OutgoingEdges returns all edges leaving the given node.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range w.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// NextNodeID resolves the successor of a node. When branch is non-empty only
// edges carrying that label match, with a single "default" edge as fallback.
// When branch is empty the single unlabelled edge matches.
func (w *Workflow) NextNodeID(nodeID, branch string) (string, bool) {
	edges := w.OutgoingEdges(nodeID)

	if branch != "" {
		for _, e := range edges {
			if e.Branch == branch {
				return e.Target, true
			}
		}

		for _, e := range edges {
			if e.Branch == BranchDefault {
				return e.Target, true
			}
		}

		return "", false
	}

	for _, e := range edges {
		if e.Branch == "" {
			return e.Target, true
		}
	}

	return "", false
}
