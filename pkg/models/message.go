package models

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ContentPartType discriminates the members of Message.ContentParts.
type ContentPartType string

const (
	ContentPartText       ContentPartType = "text"
	ContentPartToolCall   ContentPartType = "tool_call"
	ContentPartToolResult ContentPartType = "tool_result"
	ContentPartFile       ContentPartType = "file"
	ContentPartImage      ContentPartType = "image"
)

// ContentPart is one typed element of a Message's ordered content.
type ContentPart struct {
	Type       ContentPartType `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ArgsJSON   []byte          `json:"args_json,omitempty"`
	ResultJSON []byte          `json:"result_json,omitempty"`
	URI        string          `json:"uri,omitempty"`
	MimeType   string          `json:"mime_type,omitempty"`
}

// ToolCall is a single tool invocation requested by an assistant message.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args []byte `json:"args"`
}

// Message is an immutable conversational unit. Messages are append-only:
// nothing mutates a Message once it has been stored.
type Message struct {
	ID   string `json:"id"`
	// SessionID is the session this message belongs to.
	SessionID string `json:"session_id"`
	// ParentID is nullable; the forest of parent links lets a session's
	// messages be viewed as a tree when a run branches.
	ParentID *string `json:"parent_id,omitempty"`
	Role     Role    `json:"role"`
	// AgentName is the role within the team that produced this message;
	// nil for role=user.
	AgentName *string `json:"agent_name,omitempty"`
	// Content is the flattened text content; ContentParts is the ordered
	// typed representation. Both MAY be populated; Content is a
	// convenience projection of ContentParts' text.
	Content      string        `json:"content,omitempty"`
	ContentParts []ContentPart `json:"content_parts,omitempty"`
	// ToolCallID links a role=tool message to the originating tool_call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls is populated on role=assistant messages that invoke tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// TraceID is an opaque correlation id threaded from the SSE Gateway
	// through to every event/message produced by the run it started.
	TraceID string `json:"trace_id,omitempty"`
	// Timestamp is monotonic float seconds since epoch; ties are broken
	// by InsertSeq, assigned by the store on append.
	Timestamp float64        `json:"timestamp"`
	InsertSeq uint64         `json:"insert_seq"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
