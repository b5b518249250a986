package graph

import (
	"context"
	"fmt"

	"github.com/agentexec/core/pkg/models"
)

// defaultMaxTransitions bounds total node transitions in one run,
// guarding against a routing cycle (e.g. Engineer <-> QA) looping
// forever on a model that never emits "end".
const defaultMaxTransitions = 200

// Orchestrator drives nodes against a Team State, applying the fixed
// routing table after each node completes.
type Orchestrator struct {
	router         *Router
	agents         map[Node]Agent
	maxTransitions int
	namespace      []string
}

// NewOrchestrator returns an Orchestrator with agents bound per node.
func NewOrchestrator(agents map[Node]Agent) *Orchestrator {
	return &Orchestrator{
		router:         NewRouter(),
		agents:         agents,
		maxTransitions: defaultMaxTransitions,
	}
}

// WithNamespace returns a copy of o scoped under the given subgraph
// namespace path, for a nested graph invocation.
func (o *Orchestrator) WithNamespace(namespace []string) *Orchestrator {
	clone := *o
	clone.namespace = append(append([]string(nil), o.namespace...), namespace...)
	return &clone
}

// Run drives nodes starting from start until a node chooses "end" or the
// routing table resolves to NodeTerminal, streaming Steps on the
// returned channel. The channel is closed when the run ends; the run
// also stops (closing the channel after the final step) if ctx is
// canceled.
func (o *Orchestrator) Run(ctx context.Context, start Node, state *models.TeamState) <-chan Step {
	out := make(chan Step)

	go func() {
		defer close(out)

		current := start
		transitions := 0

		for {
			if current == NodeTerminal {
				return
			}
			if transitions >= o.maxTransitions {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}

			if stage := StageForNode(current); stage != "" && stage != state.Stage {
				fromStage := state.Stage
				state.Stage = stage
				select {
				case out <- Step{Kind: StepStageChange, Namespace: o.namespace, Node: current, FromStage: fromStage, ToStage: stage, State: state}:
				case <-ctx.Done():
					return
				}
			}

			select {
			case out <- Step{Kind: StepNodeStart, Namespace: o.namespace, Node: current, State: state}:
			case <-ctx.Done():
				return
			}

			agent, ok := o.agents[current]
			if !ok {
				select {
				case out <- Step{Kind: StepAgentError, Namespace: o.namespace, Node: current, Err: fmt.Errorf("no agent bound for node %q", current), State: state}:
				case <-ctx.Done():
				}
				return
			}

			msg, nextAction, err := agent.Invoke(ctx, state)
			if err != nil {
				select {
				case out <- Step{Kind: StepAgentError, Namespace: o.namespace, Node: current, Err: err, State: state}:
				case <-ctx.Done():
				}
				return
			}

			state.Messages = append(state.Messages, msg)

			select {
			case out <- Step{Kind: StepMessageToken, Namespace: o.namespace, Node: current, Message: msg, State: state}:
			case <-ctx.Done():
				return
			}

			next, recognized := o.router.Route(current, nextAction)
			decision := nextAction
			if !recognized {
				decision = fmt.Sprintf("continue (unrecognized action %q)", nextAction)
			}
			state.LastDecision = decision
			state.Iteration++

			select {
			case out <- Step{Kind: StepStateUpdate, Namespace: o.namespace, Node: current, Decision: decision, State: state}:
			case <-ctx.Done():
				return
			}

			current = next
			transitions++
		}
	}()

	return out
}
