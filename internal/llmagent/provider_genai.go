package llmagent

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/pkg/models"
)

// GenAIProvider adapts google.golang.org/genai's streaming
// GenerateContent API for the Gemini family.
type GenAIProvider struct {
	client *genai.Client
}

// NewGenAIProvider wraps an already-configured genai.Client.
func NewGenAIProvider(client *genai.Client) *GenAIProvider {
	return &GenAIProvider{client: client}
}

func (p *GenAIProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	contents := toGenAIContents(req.Messages)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Tools:             toGenAITools(req.ToolSchemas),
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		var content string
		var toolCalls []models.ToolCall

		for chunk, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				out <- Chunk{Err: errs.Model("genai stream", err)}
				return
			}
			for _, cand := range chunk.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						content += part.Text
						out <- Chunk{ContentType: models.StreamContentText, Delta: part.Text}
					}
					if part.FunctionCall != nil {
						args, _ := json.Marshal(part.FunctionCall.Args)
						toolCalls = append(toolCalls, models.ToolCall{Name: part.FunctionCall.Name, Args: args})
						out <- Chunk{
							ContentType:       models.StreamContentToolCall,
							ToolCallIndex:     len(toolCalls) - 1,
							ToolCallName:      part.FunctionCall.Name,
							ToolCallArgsDelta: string(args),
						}
					}
				}
			}
		}

		out <- Chunk{Done: true, FinalMessage: &models.Message{
			Role:      models.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		}}
	}()
	return out, nil
}

func toGenAIContents(msgs []*models.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func toGenAITools(schemas []ToolSchema) []*genai.Tool {
	if len(schemas) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		var schema genai.Schema
		_ = json.Unmarshal(s.Parameters, &schema)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  &schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
