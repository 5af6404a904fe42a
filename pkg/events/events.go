// Package events defines the lifecycle notifications published while
// executions run. Consumers are out of process: dashboards, audit sinks,
// and trigger sources reacting to finished runs.
package events

import (
	"time"

	"github.com/loopworklabs/loopwork/pkg/models"
)

type EventType string

// Topic carries every execution lifecycle event.
const Topic = "loopwork.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionResumedEvent   EventType = "execution.resumed"

	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	OrganizationID string    `json:"organization_id"`
	WorkflowID     string    `json:"workflow_id"`
	WorkerID       string    `json:"worker_id,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string           `json:"execution_id"`
	NodeID      string           `json:"node_id"`
	Error       string           `json:"error"`
	Kind        models.ErrorKind `json:"kind,omitempty"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	ResumeAt    time.Time `json:"resume_at"`

	// Retrying marks a short suspension that re-executes the same node
	// instead of advancing past it.
	Retrying bool `json:"retrying,omitempty"`
}

func (e ExecutionSuspended) GetType() EventType { return ExecutionSuspendedEvent }

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
}

func (e ExecutionResumed) GetType() EventType { return ExecutionResumedEvent }

type NodeCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	ActionType  string `json:"action_type"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType { return NodeCompletedEvent }

type NodeFailed struct {
	BaseEvent

	ExecutionID string           `json:"execution_id"`
	NodeID      string           `json:"node_id"`
	ActionType  string           `json:"action_type"`
	Error       string           `json:"error"`
	Kind        models.ErrorKind `json:"kind,omitempty"`
	Attempt     int              `json:"attempt"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }
