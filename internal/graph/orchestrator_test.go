package graph

import (
	"context"
	"testing"

	"github.com/agentexec/core/pkg/models"
)

type scriptedAgent struct {
	message    *models.Message
	nextAction string
}

func (s *scriptedAgent) Invoke(ctx context.Context, state *models.TeamState) (*models.Message, string, error) {
	return s.message, s.nextAction, nil
}

func TestOrchestratorRunsUntilEnd(t *testing.T) {
	agents := map[Node]Agent{
		NodeBoss: &scriptedAgent{message: &models.Message{Content: "distilled requirements"}, nextAction: "continue"},
		NodePM:   &scriptedAgent{message: &models.Message{Content: "PRD"}, nextAction: "end"},
	}
	o := NewOrchestrator(agents)
	state := &models.TeamState{SessionID: "s1"}

	var nodesVisited []Node
	for step := range o.Run(context.Background(), NodeBoss, state) {
		if step.Kind == StepMessageToken {
			nodesVisited = append(nodesVisited, step.Node)
		}
	}

	if len(nodesVisited) != 2 || nodesVisited[0] != NodeBoss || nodesVisited[1] != NodePM {
		t.Fatalf("nodesVisited = %v, want [boss pm]", nodesVisited)
	}
	if state.Iteration != 2 {
		t.Fatalf("Iteration = %d, want 2", state.Iteration)
	}
}

func TestOrchestratorStopsAtTransitionCap(t *testing.T) {
	agents := map[Node]Agent{
		NodeEngineer: &scriptedAgent{message: &models.Message{Content: "iterating"}, nextAction: "continue_development"},
	}
	o := NewOrchestrator(agents)
	o.maxTransitions = 5
	state := &models.TeamState{SessionID: "s1"}

	transitions := 0
	for step := range o.Run(context.Background(), NodeEngineer, state) {
		if step.Kind == StepStateUpdate {
			transitions++
		}
	}
	if transitions != 5 {
		t.Fatalf("transitions = %d, want 5 (capped)", transitions)
	}
}

func TestOrchestratorUnknownActionContinuesLinearly(t *testing.T) {
	agents := map[Node]Agent{
		NodeArchitect: &scriptedAgent{message: &models.Message{Content: "design"}, nextAction: "nonsense"},
		NodePJM:       &scriptedAgent{message: &models.Message{Content: "plan"}, nextAction: "end"},
	}
	o := NewOrchestrator(agents)
	state := &models.TeamState{SessionID: "s1"}

	var nodesVisited []Node
	for step := range o.Run(context.Background(), NodeArchitect, state) {
		if step.Kind == StepMessageToken {
			nodesVisited = append(nodesVisited, step.Node)
		}
	}
	if len(nodesVisited) != 2 || nodesVisited[1] != NodePJM {
		t.Fatalf("nodesVisited = %v, want unrecognized action to fall through to PJM", nodesVisited)
	}
}
