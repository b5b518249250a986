package llmagent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/internal/tools"
	"github.com/agentexec/core/pkg/models"
)

// maxIterations bounds one agent turn's tool-calling loop: model call,
// tool execution, model call again, ... before giving up rather than
// looping forever against a model that never stops calling tools.
const maxIterations = 25

// Middleware runs before a model call, e.g. context compaction. It
// receives the message list the model is about to see and returns the
// (possibly rewritten) list to actually send.
type Middleware interface {
	Before(ctx context.Context, messages []*models.Message) ([]*models.Message, error)
}

// EmitFunc streams chunks out of the Invoke loop as they arrive, for
// internal/streaming to translate into llm_stream events. May be nil.
type EmitFunc func(Chunk)

// ToolPhase distinguishes the two boundaries of one tool invocation, for
// translation into tool_start/tool_end events.
type ToolPhase int

const (
	ToolPhaseStart ToolPhase = iota
	ToolPhaseEnd
)

// ToolEventFunc reports one tool-invocation boundary out of the Invoke
// loop: once with ToolPhaseStart before a.Tools.Execute runs, and once
// with ToolPhaseEnd after it returns (result and err are only populated
// on the End phase). May be nil.
type ToolEventFunc func(phase ToolPhase, toolCallID, toolName string, args []byte, result *tools.Result, err error)

// Agent is the (system_prompt, model, tool_subset, middleware_chain)
// tuple of one team role. Agents are stateless across invocations; all
// state lives in the Team State and the Stores.
type Agent struct {
	Name         string
	SystemPrompt string
	Model        string
	Provider     Provider
	Tools        *tools.Registry
	Middleware   []Middleware
	Emit         EmitFunc
	// EmitTool reports tool_start/tool_end boundaries around each
	// non-decision tool call. May be nil.
	EmitTool ToolEventFunc
	// AllowedActions is the next_action vocabulary valid from this
	// agent's node, bound into its record_decision tool.
	AllowedActions []string
}

// Invoke satisfies graph.Agent: it runs the tool-calling loop to
// completion and returns the final assistant message plus the
// next_action extracted from its decision.
func (a *Agent) Invoke(ctx context.Context, state *models.TeamState) (*models.Message, string, error) {
	messages := append([]*models.Message(nil), state.Messages...)
	decisionTool := tools.NewDecisionTool(a.AllowedActions)

	var final *models.Message
	var nextAction string

	for i := 0; i < maxIterations; i++ {
		for _, mw := range a.Middleware {
			compacted, err := mw.Before(ctx, messages)
			if err != nil {
				return nil, "", errs.Model("middleware before", err)
			}
			messages = compacted
		}

		schemas := a.toolSchemas(decisionTool)
		chunks, err := a.Provider.Stream(ctx, Request{
			Model:        a.Model,
			SystemPrompt: a.SystemPrompt,
			Messages:     messages,
			ToolSchemas:  schemas,
		})
		if err != nil {
			return nil, "", errs.Model("provider stream", err)
		}

		messageID := uuid.NewString()

		var msg *models.Message
		for chunk := range chunks {
			chunk.MessageID = messageID
			if a.Emit != nil {
				a.Emit(chunk)
			}
			if chunk.Err != nil {
				return nil, "", chunk.Err
			}
			if chunk.Done {
				msg = chunk.FinalMessage
			}
		}
		if msg == nil {
			return nil, "", errs.Model("agent invoke", fmt.Errorf("%s: provider closed without a final message", a.Name))
		}
		msg.ID = messageID
		agentName := a.Name
		msg.AgentName = &agentName
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			final = msg
			break
		}

		terminal := false
		for _, tc := range msg.ToolCalls {
			var result *tools.Result
			var err error
			if tc.Name == decisionTool.Name() {
				result, err = decisionTool.Execute(ctx, tc.Args)
				if err == nil && !result.IsError {
					action, extractErr := tools.ExtractDecision(tc.Args)
					if extractErr != nil {
						return nil, "", errs.Invariant("extract decision", extractErr)
					}
					nextAction = action
				}
			} else {
				if a.EmitTool != nil {
					a.EmitTool(ToolPhaseStart, tc.ID, tc.Name, tc.Args, nil, nil)
				}
				result, err = a.Tools.Execute(ctx, tc.Name, tc.Args)
				if a.EmitTool != nil {
					a.EmitTool(ToolPhaseEnd, tc.ID, tc.Name, tc.Args, result, err)
				}
			}
			if err != nil {
				return nil, "", errs.Tool(tc.Name, err)
			}
			toolMsg := &models.Message{
				ID:         uuid.NewString(),
				SessionID:  state.SessionID,
				Role:       models.RoleTool,
				ToolCallID: tc.ID,
				Content:    result.Content,
			}
			messages = append(messages, toolMsg)

			if tc.Name == decisionTool.Name() && !result.IsError {
				final = msg
				terminal = true
			}
		}
		if terminal {
			break
		}
	}

	if final == nil {
		return nil, "", errs.Invariant("agent invoke", fmt.Errorf("%s: exceeded %d iterations without a decision", a.Name, maxIterations))
	}
	return final, nextAction, nil
}

func (a *Agent) toolSchemas(decisionTool *tools.DecisionTool) []ToolSchema {
	all := a.Tools.List()
	out := make([]ToolSchema, 0, len(all)+1)
	for _, t := range all {
		out = append(out, ToolSchema{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	out = append(out, ToolSchema{
		Name:        decisionTool.Name(),
		Description: decisionTool.Description(),
		Parameters:  decisionTool.Schema(),
	})
	return out
}
