package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types all implementations use.
var (
	// ErrWorkflowNotFound indicates no workflow exists for the identifier
	// within the caller's organization.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates no execution exists for the identifier
	// within the caller's organization.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionClaimed indicates another worker holds the execution, or
	// its status does not admit claiming.
	ErrExecutionClaimed = errors.New("execution already claimed")

	// ErrClaimLost indicates the caller's claim token no longer matches the
	// stored one; the caller must stop advancing the execution.
	ErrClaimLost = errors.New("execution claim lost")

	// ErrExecutionTerminal indicates a state change was attempted on a
	// completed, failed or cancelled execution.
	ErrExecutionTerminal = errors.New("execution is terminal")
)

// WorkflowError wraps workflow store errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

func (e *WorkflowError) Is(target error) bool { return errors.Is(e.Err, target) }

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// ExecutionError wraps execution store errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return errors.Is(e.Err, target) }

func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}
