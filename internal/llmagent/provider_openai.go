package llmagent

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/pkg/models"
)

// OpenAIProvider adapts sashabaranov/go-openai's chat completion
// streaming client.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider returns a Provider backed by the given API key.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	messages := toOpenAIMessages(req.SystemPrompt, req.Messages)
	tools := toOpenAITools(req.ToolSchemas)

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	})
	if err != nil {
		return nil, errs.Model("openai create stream", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		var content string
		var toolCalls []openai.ToolCall

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				out <- Chunk{Err: errs.Model("openai stream recv", err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				content += delta.Content
				out <- Chunk{ContentType: models.StreamContentText, Delta: delta.Content}
			}
			for i, tc := range delta.ToolCalls {
				if i >= len(toolCalls) {
					toolCalls = append(toolCalls, openai.ToolCall{ID: tc.ID, Function: openai.FunctionCall{Name: tc.Function.Name}})
				}
				toolCalls[i].Function.Arguments += tc.Function.Arguments
				out <- Chunk{
					ContentType:       models.StreamContentToolCall,
					ToolCallIndex:     i,
					ToolCallName:      tc.Function.Name,
					ToolCallID:        tc.ID,
					ToolCallArgsDelta: tc.Function.Arguments,
				}
			}
		}

		final := &models.Message{Role: models.RoleAssistant, Content: content}
		for _, tc := range toolCalls {
			final.ToolCalls = append(final.ToolCalls, models.ToolCall{
				ID: tc.ID, Name: tc.Function.Name, Args: []byte(tc.Function.Arguments),
			})
		}
		out <- Chunk{Done: true, FinalMessage: final}
	}()
	return out, nil
}

func toOpenAIMessages(system string, msgs []*models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case models.RoleTool:
			role = openai.ChatMessageRoleTool
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content, ToolCallID: m.ToolCallID})
	}
	return out
}

func toOpenAITools(schemas []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		var params map[string]any
		_ = json.Unmarshal(s.Parameters, &params)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
