// Package web provides the HTTP handlers for workflow management and
// execution lifecycle operations. Every route is tenant-scoped by the
// X-Organization-ID header.
package web

import "github.com/loopworklabs/loopwork/pkg/models"

// OrganizationHeader carries the tenant on every request.
const OrganizationHeader = "X-Organization-ID"

// CreateWorkflowRequest is the body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name          string                `json:"name"        validate:"required,min=3"`
	Description   string                `json:"description"`
	Nodes         []*models.Node        `json:"nodes"`
	Edges         []*models.Edge        `json:"edges"`
	Variables     map[string]any        `json:"variables"`
	BusinessHours *models.BusinessHours `json:"business_hours,omitempty"`
}

// UpdateWorkflowRequest replaces the workflow definition. Nodes and edges
// are replaced wholesale; an execution started against the previous version
// keeps its snapshot semantics via the version bump.
type UpdateWorkflowRequest struct {
	Name          string                `json:"name"        validate:"required,min=3"`
	Description   string                `json:"description"`
	Nodes         []*models.Node        `json:"nodes"`
	Edges         []*models.Edge        `json:"edges"`
	Variables     map[string]any        `json:"variables"`
	BusinessHours *models.BusinessHours `json:"business_hours,omitempty"`
}

// TriggerRequest is one trigger event starting an execution. EventID, when
// set, deduplicates provider redeliveries.
type TriggerRequest struct {
	EventID string         `json:"event_id,omitempty"`
	Data    map[string]any `json:"data"`
}

// TriggerResponse acknowledges an accepted trigger.
type TriggerResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}
