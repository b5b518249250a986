package models

// EventType is the canonical wire value for an Event's discriminator.
// These are the exact values fixed by the event-type enumeration; do not
// invent synonyms. Implementations that historically prefixed values
// (e.g. a dotted "model.delta") must normalise both on read — see
// internal/streaming/normalize.go.
type EventType string

const (
	EventAgentStart      EventType = "agent_start"
	EventNodeStart       EventType = "node_start"
	EventLLMStream       EventType = "llm_stream"
	EventMessageComplete EventType = "message_complete"
	EventToolStart       EventType = "tool_start"
	EventToolEnd         EventType = "tool_end"
	EventNodeEnd         EventType = "node_end"
	EventStageChange     EventType = "stage_change"
	EventCustom          EventType = "custom"
	EventAgentError      EventType = "agent_error"
	EventFinish          EventType = "finish"
)

// FinishStatus is the terminal status carried by a finish event.
type FinishStatus string

const (
	FinishSuccess FinishStatus = "success"
	FinishFailed  FinishStatus = "failed"
	FinishTimeout FinishStatus = "timeout"
	FinishStopped FinishStatus = "stopped"
)

// StreamContentType discriminates llm_stream chunks.
type StreamContentType string

const (
	StreamContentText     StreamContentType = "text"
	StreamContentToolCall StreamContentType = "tool_call"
)

// Event is the finest-grained observable unit the core produces.
// Append-only, with a configurable TTL (default 7 days).
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp float64   `json:"timestamp"`
	InsertSeq uint64    `json:"insert_seq"`
	Type      EventType `json:"event_type"`
	// AgentName is nullable: absent for gateway-originated events such
	// as agent_start.
	AgentName string `json:"agent_name,omitempty"`
	// Namespace is the ordered list of subgraph node identifiers this
	// event originated under; empty for the root graph.
	Namespace  []string       `json:"namespace,omitempty"`
	Data       EventData      `json:"data"`
	MessageID  string         `json:"message_id,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EventData is the type-dependent payload of an Event; exactly the
// fields named in spec.md §4.7's table for the event's Type are
// meaningful. Using one struct with omitempty tags (rather than a
// pointer-per-type union) keeps JSON encode/decode symmetric across the
// store boundary without a type switch at every call site.
type EventData struct {
	// agent_start
	Prompt          string `json:"prompt,omitempty"`
	Framework       string `json:"framework,omitempty"`
	UserMessageID   string `json:"user_message_id,omitempty"`

	// node_start / node_end
	NodeName string `json:"node_name,omitempty"`
	Decision string `json:"decision,omitempty"`

	// llm_stream
	Delta           string            `json:"delta,omitempty"`
	ContentType     StreamContentType `json:"content_type,omitempty"`
	ToolCallIndex   int               `json:"tool_call_index,omitempty"`
	ToolCallName    string            `json:"tool_call_name,omitempty"`
	ToolCallID      string            `json:"tool_call_id,omitempty"`

	// message_complete
	Role      Role       `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// tool_start / tool_end
	ToolName string `json:"tool_name,omitempty"`
	Args     []byte `json:"args,omitempty"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`

	// stage_change
	FromStage string `json:"from_stage,omitempty"`
	ToStage   string `json:"to_stage,omitempty"`

	// custom
	CustomType string `json:"custom_type,omitempty"`
	Payload    any    `json:"payload,omitempty"`

	// agent_error
	ErrorType string `json:"error_type,omitempty"`

	// finish
	Status   FinishStatus `json:"status,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	ExitCode *int         `json:"exit_code,omitempty"`
}
