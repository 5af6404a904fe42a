package models

import "time"

// ErrorKind classifies a node failure for the error taxonomy. Validation and
// tenant-data errors are terminal for the node and never retried; transient
// errors may retry per node-level policy; engine errors indicate a corrupt
// workflow definition and are always terminal.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindTransient  ErrorKind = "transient"
	ErrorKindTenantData ErrorKind = "tenant_data"
	ErrorKindEngine     ErrorKind = "engine"

	// ErrorKindWebhookTimeout separates a slow endpoint from an unreachable
	// one. It retries like a transient error.
	ErrorKindWebhookTimeout ErrorKind = "webhook_timeout"
)

// NodeResult is the structured outcome a handler returns to the walker.
// Handlers never return Go errors for expected failure modes; they describe
// the failure here so the walker can apply retry and containment policy.
type NodeResult struct {
	Success bool      `json:"success"`
	Output  any       `json:"output,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`

	// NextBranch names the outgoing edge to follow (decision nodes).
	NextBranch string `json:"next_branch,omitempty"`

	// ShouldContinue=false suspends the execution; ResumeAt must then be set.
	ShouldContinue bool       `json:"should_continue"`
	ResumeAt       *time.Time `json:"resume_at,omitempty"`

	// ShouldRetry signals the same node must re-execute after RetryDelay.
	// It is distinct from ShouldContinue: the graph does not advance.
	ShouldRetry bool          `json:"should_retry,omitempty"`
	RetryDelay  time.Duration `json:"retry_delay,omitempty"`
}

// Continue is the common success result: record output, advance the graph.
func Continue(output any) NodeResult {
	return NodeResult{Success: true, Output: output, ShouldContinue: true}
}

// ContinueBranch is Continue with an explicit outgoing branch.
func ContinueBranch(output any, branch string) NodeResult {
	return NodeResult{Success: true, Output: output, ShouldContinue: true, NextBranch: branch}
}

// Suspend pauses the execution until resumeAt; the suspending node counts as
// complete once the delay elapses.
func Suspend(output any, resumeAt time.Time) NodeResult {
	return NodeResult{Success: true, Output: output, ShouldContinue: false, ResumeAt: &resumeAt}
}

// Fail is a terminal node failure of the given kind.
func Fail(kind ErrorKind, message string) NodeResult {
	return NodeResult{Success: false, Kind: kind, Error: message}
}

// Retry schedules the same node to re-execute after delay.
func Retry(message string, delay time.Duration) NodeResult {
	return NodeResult{
		Success:     false,
		Kind:        ErrorKindTransient,
		Error:       message,
		ShouldRetry: true,
		RetryDelay:  delay,
	}
}
