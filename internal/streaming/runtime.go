package streaming

import (
	"context"

	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/internal/graph"
	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/pkg/models"
)

// historyPreloadLimit bounds how many prior messages are loaded into the
// initial Team State, per spec.md §4.7's "preload up to K prior
// messages" instruction.
const historyPreloadLimit = 100

// Runtime drives one run for one session: it owns the Team State, drives
// the Graph Orchestrator, and translates its stream into persisted
// Events and Messages. One Runtime per container; no cross-run sharing.
type Runtime struct {
	sessionID     string
	workspaceID   string
	framework     string
	messages      store.MessageStore
	stops         store.StopSignalStore
	emitter       *Emitter
	orchestrator  *graph.Orchestrator
	startNode     graph.Node
}

// Config bundles the dependencies one Runtime needs.
type Config struct {
	SessionID    string
	WorkspaceID  string
	Framework    string
	Messages     store.MessageStore
	Stops        store.StopSignalStore
	Emitter      *Emitter
	Orchestrator *graph.Orchestrator
	StartNode    graph.Node
}

// NewRuntime builds a Runtime from cfg.
func NewRuntime(cfg Config) *Runtime {
	return &Runtime{
		sessionID:    cfg.SessionID,
		workspaceID:  cfg.WorkspaceID,
		framework:    cfg.Framework,
		messages:     cfg.Messages,
		stops:        cfg.Stops,
		emitter:      cfg.Emitter,
		orchestrator: cfg.Orchestrator,
		startNode:    cfg.StartNode,
	}
}

// Run resolves the prompt, preloads history, and drives the run to
// completion, appending every event and message it produces. It returns
// only once the run reaches a terminal state (including being stopped).
func (r *Runtime) Run(ctx context.Context) error {
	prompt, err := r.resolveInput(ctx)
	if err != nil {
		return err
	}
	if prompt == nil {
		_, finishErr := r.emitter.Emit(ctx, models.EventFinish, "", nil, "", models.EventData{
			Status: models.FinishStopped,
			Reason: "no-user-turn",
		})
		return finishErr
	}

	state, err := r.buildInitialState(ctx)
	if err != nil {
		return errs.Persistence("preload history", err)
	}

	if _, err := r.emitter.Emit(ctx, models.EventAgentStart, "", nil, "", models.EventData{
		Prompt:        prompt.Content,
		Framework:     r.framework,
		UserMessageID: prompt.ID,
	}); err != nil {
		return errs.Persistence("emit agent_start", err)
	}

	status := models.FinishSuccess
	reason := ""

	current := r.startNode
	for step := range r.orchestrator.Run(ctx, current, state) {
		if stopped, err := r.stops.IsStopped(ctx, r.sessionID); err == nil && stopped {
			status, reason = models.FinishStopped, "explicit-stop"
			break
		}

		switch step.Kind {
		case graph.StepNodeStart:
			if _, err := r.emitter.Emit(ctx, models.EventNodeStart, "", step.Namespace, "", models.EventData{
				NodeName: string(step.Node),
			}); err != nil {
				return errs.Persistence("emit node_start", err)
			}

		case graph.StepStageChange:
			if _, err := r.emitter.Emit(ctx, models.EventStageChange, "", step.Namespace, "", models.EventData{
				FromStage: string(step.FromStage),
				ToStage:   string(step.ToStage),
			}); err != nil {
				return errs.Persistence("emit stage_change", err)
			}

		case graph.StepMessageToken:
			if _, err := r.messages.AppendMessage(ctx, step.Message); err != nil {
				return errs.Persistence("append message", err)
			}
			agentName := ""
			if step.Message.AgentName != nil {
				agentName = *step.Message.AgentName
			}
			if _, err := r.emitter.Emit(ctx, models.EventMessageComplete, agentName, step.Namespace, step.Message.ID, models.EventData{
				Role:      step.Message.Role,
				Content:   step.Message.Content,
				ToolCalls: step.Message.ToolCalls,
			}); err != nil {
				return errs.Persistence("emit message_complete", err)
			}

		case graph.StepStateUpdate:
			if _, err := r.emitter.Emit(ctx, models.EventNodeEnd, string(step.Node), step.Namespace, "", models.EventData{
				NodeName: string(step.Node),
				Decision: step.Decision,
			}); err != nil {
				return errs.Persistence("emit node_end", err)
			}

		case graph.StepAgentError:
			errType := "invariant"
			if errs.Is(step.Err, errs.KindModel) {
				errType = "model"
			}
			if _, err := r.emitter.Emit(ctx, models.EventAgentError, "", step.Namespace, "", models.EventData{
				ErrorType: errType,
				Error:     step.Err.Error(),
			}); err != nil {
				return errs.Persistence("emit agent_error", err)
			}
			status, reason = models.FinishFailed, step.Err.Error()
		}

		if status != models.FinishSuccess {
			break
		}
	}

	if status == models.FinishSuccess && ctx.Err() != nil {
		status, reason = models.FinishTimeout, ctx.Err().Error()
	}

	_, err = r.emitter.Emit(ctx, models.EventFinish, "", nil, "", models.EventData{Status: status, Reason: reason})
	return err
}

// resolveInput reads the last stored message for the session. A nil,nil
// return means the run must terminate with finish{stopped, no-user-turn}.
func (r *Runtime) resolveInput(ctx context.Context) (*models.Message, error) {
	last, err := r.messages.LastMessage(ctx, r.sessionID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("resolve input", err)
	}
	if last.Role != models.RoleUser {
		return nil, nil
	}
	return last, nil
}

func (r *Runtime) buildInitialState(ctx context.Context) (*models.TeamState, error) {
	history, err := r.messages.ListMessages(ctx, r.sessionID, historyPreloadLimit, store.OrderDescending)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return &models.TeamState{
		SessionID:   r.sessionID,
		WorkspaceID: r.workspaceID,
		Framework:   models.Framework(r.framework),
		Stage:       models.StageRequirements,
		Messages:    history,
		Documents:   make(map[string]string),
	}, nil
}
