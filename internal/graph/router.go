package graph

import "github.com/agentexec/core/pkg/models"

// nodeStage maps each node to the Team State stage it represents, per
// spec.md's stage enum; entering a node whose stage differs from the
// current one is a stage_change.
var nodeStage = map[Node]models.Stage{
	NodeBoss:      models.StageRequirements,
	NodePM:        models.StageProductSpec,
	NodeArchitect: models.StageDesign,
	NodePJM:       models.StagePlanning,
	NodeEngineer:  models.StageEngineering,
	NodeQA:        models.StageQA,
	NodeTerminal:  models.StageDone,
}

// StageForNode returns the stage a node represents, or "" if node has
// none (never true for the fixed six-role graph plus the terminal node).
func StageForNode(node Node) models.Stage {
	return nodeStage[node]
}

// transition is one row of the fixed routing table: from Current, the
// next_action string maps to a Next node.
type transition struct {
	current Node
	action  string
	next    Node
}

// routingTable is the fixed table; unknown actions default to the
// node's linear successor ("continue"), and invalid transitions are
// treated as "continue" with a warning the orchestrator emits as a
// node_end decision annotation.
var routingTable = []transition{
	{NodeBoss, "continue", NodePM},
	{NodeBoss, "end", NodeTerminal},

	{NodePM, "continue", NodeArchitect},
	{NodePM, "back_to_boss", NodeBoss},
	{NodePM, "end", NodeTerminal},

	{NodeArchitect, "continue", NodePJM},
	{NodeArchitect, "back_to_pm", NodePM},
	{NodeArchitect, "end", NodeTerminal},

	{NodePJM, "continue", NodeEngineer},
	{NodePJM, "back_to_architect", NodeArchitect},
	{NodePJM, "back_to_pm", NodePM},
	{NodePJM, "end", NodeTerminal},

	{NodeEngineer, "continue", NodeQA},
	{NodeEngineer, "continue_development", NodeEngineer},
	{NodeEngineer, "back_to_architect", NodeArchitect},
	{NodeEngineer, "end", NodeTerminal},

	{NodeQA, "continue", NodeTerminal},
	{NodeQA, "back_to_engineer", NodeEngineer},
	{NodeQA, "end", NodeTerminal},
}

// linearSuccessor is the default successor consulted when next_action is
// "continue" or unrecognized.
var linearSuccessor = map[Node]Node{
	NodeBoss:      NodePM,
	NodePM:        NodeArchitect,
	NodeArchitect: NodePJM,
	NodePJM:       NodeEngineer,
	NodeEngineer:  NodeQA,
	NodeQA:        NodeTerminal,
}

// Router resolves the fixed routing table.
type Router struct {
	byCurrentAction map[Node]map[string]Node
}

// NewRouter builds a Router from the fixed routing table.
func NewRouter() *Router {
	idx := make(map[Node]map[string]Node)
	for _, t := range routingTable {
		if idx[t.current] == nil {
			idx[t.current] = make(map[string]Node)
		}
		idx[t.current][t.action] = t.next
	}
	return &Router{byCurrentAction: idx}
}

// AllowedActions returns the next_action vocabulary valid from current,
// for binding into that node's record_decision tool.
func (r *Router) AllowedActions(current Node) []string {
	actions := make([]string, 0, len(r.byCurrentAction[current]))
	for action := range r.byCurrentAction[current] {
		actions = append(actions, action)
	}
	return actions
}

// Route resolves (current, action) to the next node. Unknown actions
// default to current's linear successor ("continue" semantics); the
// bool return reports whether action was recognized for current.
func (r *Router) Route(current Node, action string) (Node, bool) {
	if action == "" {
		action = "continue"
	}
	if next, ok := r.byCurrentAction[current][action]; ok {
		return next, true
	}
	if next, ok := linearSuccessor[current]; ok {
		return next, false
	}
	return NodeTerminal, false
}
