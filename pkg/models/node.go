// Package models defines graph node and edge models for workflow execution.
package models

// NodeType discriminates the units of work a workflow graph is built from.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeWait      NodeType = "wait"
	NodeTypeLoop      NodeType = "loop"
	NodeTypeSwitch    NodeType = "switch"
	NodeTypeWebhook   NodeType = "webhook"
	NodeTypeAI        NodeType = "ai"
	NodeTypeMerge     NodeType = "merge"
	NodeTypeNote      NodeType = "note"
)

// Branch labels used by decision nodes.
const (
	BranchTrue    = "true"
	BranchFalse   = "false"
	BranchDefault = "default"
)

// Node is a unit of work in a workflow graph. Config is the type-specific
// configuration bag; ActionType further discriminates action nodes and maps
// to a registered handler.
type Node struct {
	ID         string         `json:"id"          validate:"required"`
	Type       NodeType       `json:"type"        validate:"required"`
	Name       string         `json:"name"`
	ActionType string         `json:"action_type,omitempty"`
	Config     map[string]any `json:"config"`
	Enabled    bool           `json:"enabled"`
}

// HandlerType returns the registry key dispatching this node. Non-action
// node types dispatch on the type itself; action nodes on their ActionType.
func (n *Node) HandlerType() string {
	if n.Type == NodeTypeAction && n.ActionType != "" {
		return n.ActionType
	}

	return string(n.Type)
}

// Edge is a directed link between two nodes. Branch disambiguates multiple
// outgoing edges of a decision node ("true"/"false", a switch case name, or
// "default").
type Edge struct {
	ID     string `json:"id"     validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Branch string `json:"branch,omitempty"`
}
