// Package llmagent implements the LLM Agent (C4): the
// (system_prompt, model, tool_subset, middleware_chain) tuple and its
// Invoke loop, over a pluggable Provider abstraction spanning four
// backends.
package llmagent

import (
	"context"

	"github.com/agentexec/core/pkg/models"
)

// Request is one model call: the system prompt, full message history,
// and the tool schemas currently in scope.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []*models.Message
	ToolSchemas  []ToolSchema
}

// ToolSchema is the provider-agnostic shape a Provider translates into
// its own tool-calling wire format.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  []byte // raw JSON Schema
}

// Chunk is one unit of a streamed model response.
type Chunk struct {
	// MessageID identifies the logical assistant message this chunk
	// belongs to; every chunk of one model turn shares the same value,
	// and the terminating message_complete event carries it too, per
	// spec.md §3's message-id discipline.
	MessageID   string
	ContentType models.StreamContentType
	Delta       string

	ToolCallIndex int
	ToolCallName  string
	ToolCallID    string
	// ToolCallArgsDelta accumulates the JSON arguments of a tool_call
	// chunk; providers stream this incrementally the same way they
	// stream text.
	ToolCallArgsDelta string

	// Done marks the final chunk of the stream; FinalMessage is only
	// populated on this chunk.
	Done         bool
	FinalMessage *models.Message
	Err          error
}

// Provider abstracts one LLM backend's streaming chat-completion API.
type Provider interface {
	// Stream issues req and returns a channel of Chunks, closed when the
	// response (or an error) completes.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
