package llmagent

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/pkg/models"
)

// BedrockProvider adapts aws-sdk-go-v2's bedrockruntime
// InvokeModelWithResponseStream API to the Anthropic-on-Bedrock
// message format (the only tool-calling-capable model family Bedrock
// exposes that matches our Provider shape).
type BedrockProvider struct {
	client *bedrockruntime.Client
}

// NewBedrockProvider returns a Provider backed by an already-configured
// bedrockruntime client (constructed from aws.Config upstream).
func NewBedrockProvider(client *bedrockruntime.Client) *BedrockProvider {
	return &BedrockProvider{client: client}
}

type bedrockAnthropicBody struct {
	AnthropicVersion string                  `json:"anthropic_version"`
	MaxTokens        int                     `json:"max_tokens"`
	System           string                  `json:"system,omitempty"`
	Messages         []bedrockAnthropicTurn  `json:"messages"`
	Tools            []bedrockAnthropicTool  `json:"tools,omitempty"`
}

type bedrockAnthropicTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type bedrockStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	ContentBlock struct {
		Type  string `json:"type"`
		ID    string `json:"id"`
		Name  string `json:"name"`
	} `json:"content_block"`
	Index int `json:"index"`
}

func (p *BedrockProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	body := bedrockAnthropicBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        8192,
		System:           req.SystemPrompt,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, bedrockAnthropicTurn{Role: string(m.Role), Content: m.Content})
	}
	for _, s := range req.ToolSchemas {
		body.Tools = append(body.Tools, bedrockAnthropicTool{Name: s.Name, Description: s.Description, InputSchema: s.Parameters})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Model("bedrock marshal request", err)
	}

	resp, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, errs.Model("bedrock invoke stream", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		var content string
		stream := resp.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			var e bedrockStreamEvent
			if err := json.Unmarshal(chunk.Value.Bytes, &e); err != nil {
				continue
			}
			switch e.Type {
			case "content_block_delta":
				if e.Delta.Type == "text_delta" {
					content += e.Delta.Text
					out <- Chunk{ContentType: models.StreamContentText, Delta: e.Delta.Text}
				} else if e.Delta.Type == "input_json_delta" {
					out <- Chunk{
						ContentType:       models.StreamContentToolCall,
						ToolCallIndex:     e.Index,
						ToolCallArgsDelta: e.Delta.PartialJSON,
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: errs.Model("bedrock stream", err)}
			return
		}
		out <- Chunk{Done: true, FinalMessage: &models.Message{Role: models.RoleAssistant, Content: content}}
	}()
	return out, nil
}
