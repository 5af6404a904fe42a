package models

import (
	"strconv"
	"strings"
)

// ExecutionContext is the append-only bag of values threaded through one
// execution: the trigger payload, declared and runtime-set variables, and
// one entry per executed node keyed by node ID. It never shrinks during a
// run, and only the worker currently holding the execution claim writes to
// it, so no internal locking is needed.
type ExecutionContext struct {
	ExecutionID    string         `json:"execution_id"`
	WorkflowID     string         `json:"workflow_id"`
	OrganizationID string         `json:"organization_id"`
	Trigger        map[string]any `json:"trigger,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
	Steps          map[string]any `json:"steps,omitempty"`

	// Attempt is the retry attempt for the node currently dispatched (0 on
	// first execution). Set by the walker before each dispatch.
	Attempt int `json:"attempt,omitempty"`

	// NodeID is the node currently dispatched, set by the walker. Handlers
	// that keep per-node state across visits (loop) read their previous
	// output through it.
	NodeID string `json:"-"`
}

// NewExecutionContext builds a context seeded with the trigger payload and
// the workflow's declared variables.
func NewExecutionContext(executionID, workflowID, organizationID string, trigger, variables map[string]any) *ExecutionContext {
	vars := make(map[string]any, len(variables))
	for k, v := range variables {
		vars[k] = v
	}

	return &ExecutionContext{
		ExecutionID:    executionID,
		WorkflowID:     workflowID,
		OrganizationID: organizationID,
		Trigger:        trigger,
		Variables:      vars,
		Steps:          make(map[string]any),
	}
}

// SetStep records a node's output. Outputs are write-once per node ID except
// when the same node retries, which overwrites its previous attempt.
func (c *ExecutionContext) SetStep(nodeID string, output any) {
	if c.Steps == nil {
		c.Steps = make(map[string]any)
	}

	c.Steps[nodeID] = output
}

// SetVariable records a runtime-set variable.
func (c *ExecutionContext) SetVariable(name string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}

	c.Variables[name] = value
}

// Data returns the addressable view of the context used by templates and
// conditions. "vars" aliases "variables" for shorter templates.
func (c *ExecutionContext) Data() map[string]any {
	return map[string]any{
		"trigger":   c.Trigger,
		"variables": c.Variables,
		"vars":      c.Variables,
		"steps":     c.Steps,
		"execution": map[string]any{
			"id":              c.ExecutionID,
			"workflow_id":     c.WorkflowID,
			"organization_id": c.OrganizationID,
		},
	}
}

// Lookup resolves a dotted path against the context. Paths may start from
// one of the named roots (trigger, variables, vars, steps, execution); bare
// paths fall back to the trigger payload first, then the variables, so
// tenant templates like {{score}} keep working after payload fields move.
// Integer indices use bracket syntax: items[0].name.
func (c *ExecutionContext) Lookup(path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	if v, ok := resolvePath(c.Data(), segments); ok {
		return v, true
	}

	if v, ok := resolvePath(c.Trigger, segments); ok {
		return v, true
	}

	return resolvePath(c.Variables, segments)
}

func resolvePath(root any, segments []pathSegment) (any, bool) {
	current := root

	for _, seg := range segments {
		if seg.index >= 0 {
			arr, ok := current.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}

			current = arr[seg.index]

			continue
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = obj[seg.key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

type pathSegment struct {
	key   string
	index int // -1 for field access
}

// splitPath breaks "a.b[2].c" into field and index segments.
func splitPath(path string) []pathSegment {
	var segments []pathSegment

	for _, part := range strings.Split(strings.TrimSpace(path), ".") {
		if part == "" {
			return nil
		}

		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				segments = append(segments, pathSegment{key: part, index: -1})

				break
			}

			closing := strings.IndexByte(part, ']')
			if closing < open {
				return nil
			}

			if open > 0 {
				segments = append(segments, pathSegment{key: part[:open], index: -1})
			}

			idx, err := strconv.Atoi(part[open+1 : closing])
			if err != nil || idx < 0 {
				return nil
			}

			segments = append(segments, pathSegment{index: idx})

			part = part[closing+1:]
			if part == "" {
				break
			}
		}
	}

	return segments
}
