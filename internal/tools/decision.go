package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// DecisionArgs is the schema for the record_decision sentinel tool: the
// model's explicit next_action choice (continue, end, back_to_X, or
// continue_development), consumed by internal/graph's routing table.
// This is the tool-call channel of the dual decision mechanism;
// internal/graph also accepts the textual-marker fallback for models
// that decline to call a tool on their final turn.
type DecisionArgs struct {
	NextAction string `json:"next_action" jsonschema:"required,description=continue, end, back_to_X, or continue_development"`
	Reason     string `json:"reason,omitempty" jsonschema:"description=One-line justification for this routing choice"`
}

// DecisionTool is a sentinel tool with no side effect beyond its result
// text: the graph orchestrator reads the model's last tool call for this
// name to extract next_action directly, rather than parsing it back out
// of free text.
type DecisionTool struct {
	allowed map[string]bool
}

// NewDecisionTool returns a DecisionTool that accepts only the given
// next_action values, the current node's row of the routing table.
func NewDecisionTool(allowedNextActions []string) *DecisionTool {
	allowed := make(map[string]bool, len(allowedNextActions))
	for _, a := range allowedNextActions {
		allowed[a] = true
	}
	return &DecisionTool{allowed: allowed}
}

func (d *DecisionTool) Name() string { return "record_decision" }
func (d *DecisionTool) Description() string {
	return "Record which role should run next, or TERM to end the workflow."
}
func (d *DecisionTool) Schema() json.RawMessage { return GenerateSchema(DecisionArgs{}) }

func (d *DecisionTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a DecisionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if !d.allowed[a.NextAction] {
		return &Result{Content: fmt.Sprintf("next_action %q is not a valid transition from this node", a.NextAction), IsError: true}, nil
	}
	return &Result{Content: fmt.Sprintf("recorded: %s", a.NextAction)}, nil
}

// ExtractDecision inspects the arguments of a record_decision tool call
// and returns the chosen next_action.
func ExtractDecision(args json.RawMessage) (string, error) {
	var a DecisionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("tools: decode decision args: %w", err)
	}
	if a.NextAction == "" {
		return "", fmt.Errorf("tools: decision missing next_action")
	}
	return a.NextAction, nil
}
