package llmagent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/pkg/models"
)

// AnthropicProvider adapts anthropic-sdk-go's streaming Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider returns a Provider backed by the given API key.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: 8192,
		System:    []anthropic.TextBlockParam{{Text: req.SystemPrompt}},
		Messages:  toAnthropicMessages(req.Messages),
		Tools:     toAnthropicTools(req.ToolSchemas),
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan Chunk)
	go func() {
		defer close(out)

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out <- Chunk{Err: errs.Model("anthropic stream accumulate", err)}
				return
			}

			switch delta := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch d := delta.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- Chunk{ContentType: models.StreamContentText, Delta: d.Text}
				case anthropic.InputJSONDelta:
					out <- Chunk{
						ContentType:       models.StreamContentToolCall,
						ToolCallIndex:     int(delta.Index),
						ToolCallArgsDelta: d.PartialJSON,
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: errs.Model("anthropic stream", err)}
			return
		}

		final, err := assembleAnthropicMessage(message)
		if err != nil {
			out <- Chunk{Err: errs.Model("anthropic assemble", err)}
			return
		}
		out <- Chunk{Done: true, FinalMessage: final}
	}()
	return out, nil
}

func toAnthropicMessages(msgs []*models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser, models.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(schemas []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{}, s.Name))
	}
	return out
}

func assembleAnthropicMessage(msg anthropic.Message) (*models.Message, error) {
	out := &models.Message{Role: models.RoleAssistant}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += b.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: b.ID, Name: b.Name, Args: b.Input})
		}
	}
	if len(out.ToolCalls) == 0 && out.Content == "" {
		return nil, fmt.Errorf("anthropic: empty assistant message")
	}
	return out, nil
}
