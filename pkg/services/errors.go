package services

import (
	"errors"

	"github.com/loopworklabs/loopwork/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is re-exported so web handlers depend on the
	// service layer only.
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound

	// ErrWorkflowInactive is returned when a trigger lands on a draft,
	// archived or deleted workflow.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrDuplicateTrigger is returned when the trigger event was already
	// seen inside the dedupe window.
	ErrDuplicateTrigger = errors.New("duplicate trigger event")

	// ErrInvalidGraph is returned when a workflow definition fails
	// structural validation.
	ErrInvalidGraph = errors.New("invalid workflow graph")
)

// IsNotFound reports whether the error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound) ||
		errors.Is(err, persistence.ErrExecutionNotFound)
}
