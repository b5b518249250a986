// Package graph implements the Graph Orchestrator (C6): a directed
// graph of fixed nodes bound to agents, routed by a fixed
// (node, next_action) -> next_node table against a shared Team State.
package graph

import (
	"context"

	"github.com/agentexec/core/pkg/models"
)

// Node is a named point in the graph bound to an agent invocation.
type Node string

const (
	NodeBoss      Node = "boss"
	NodePM        Node = "pm"
	NodeArchitect Node = "architect"
	NodePJM       Node = "pjm"
	NodeEngineer  Node = "engineer"
	NodeQA        Node = "qa"
	NodeTerminal  Node = "TERM"
)

// Agent is the per-node invocation contract the orchestrator drives.
// internal/llmagent.Agent satisfies this.
type Agent interface {
	// Invoke runs one node's turn against the current team state and
	// returns the assistant message it produced plus the raw
	// next_action string extracted from its decision (tool call or
	// textual marker).
	Invoke(ctx context.Context, state *models.TeamState) (msg *models.Message, nextAction string, err error)
}

// StepKind discriminates the item shapes the orchestrator streams.
type StepKind string

const (
	StepNodeStart    StepKind = "node_start"
	StepStageChange  StepKind = "stage_change"
	StepStateUpdate  StepKind = "state_update"
	StepMessageToken StepKind = "message_token"
	StepAgentError   StepKind = "agent_error"
)

// Step is one item of the orchestrator's streaming invocation.
type Step struct {
	Kind      StepKind
	Namespace []string
	Node      Node
	// Message is set for StepMessageToken (a full Message — token-level
	// streaming is handled one layer down, by internal/streaming).
	Message *models.Message
	// Decision is set for StepStateUpdate: the next_action that drove
	// the transition away from Node.
	Decision string
	// FromStage and ToStage are set for StepStageChange.
	FromStage models.Stage
	ToStage   models.Stage
	// Err is set for StepAgentError: the node's agent failed in a way
	// that ends the run (a Model or Invariant error, never a Tool
	// error, which the agent itself absorbs into a tool message).
	Err error
	// State is a snapshot of Team State immediately after applying this
	// step's delta.
	State *models.TeamState
}
