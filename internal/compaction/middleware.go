package compaction

import (
	"context"
	"encoding/json"

	"github.com/agentexec/core/pkg/models"
)

// TriggerConfig configures when Compactor fires and how much history it
// keeps, per spec.md §4.5.
type TriggerConfig struct {
	// TriggerTokens fires compaction once estimated tokens reach this
	// count. Zero disables the token trigger.
	TriggerTokens int
	// TriggerMessageCount fires compaction once the message count reaches
	// this count. Zero disables the message-count trigger.
	TriggerMessageCount int
	// RetentionMessages is the number of most recent messages to keep
	// verbatim in the suffix.
	RetentionMessages int
}

// Compactor is the pre-model middleware hook: pass-through below the
// trigger threshold; otherwise summarize the prefix that falls outside
// the retention target and splice the digest in as a synthetic leading
// user message, keeping the suffix verbatim. Satisfies
// internal/llmagent.Middleware's Before(ctx, messages) signature by
// duck typing — llmagent does not import this package's types directly
// to avoid a dependency cycle with any future llmagent-side summarizer.
type Compactor struct {
	Trigger  TriggerConfig
	Strategy Strategy
}

// Before is internal/llmagent.Middleware's hook.
func (c *Compactor) Before(ctx context.Context, messages []*models.Message) ([]*models.Message, error) {
	if !c.shouldCompress(messages) {
		return messages, nil
	}

	cut := c.cutIndex(messages)
	if cut <= 0 {
		return messages, nil
	}

	prefix := toCompactionMessages(messages[:cut])
	digest, err := c.Strategy.Compress(ctx, prefix)
	if err != nil {
		// Failure falls back to pass-through rather than dropping
		// content, per spec.md §4.5.
		return messages, nil
	}

	synthetic := &models.Message{
		SessionID: messages[0].SessionID,
		Role:      models.RoleUser,
		Content:   digest,
	}
	out := make([]*models.Message, 0, len(messages)-cut+1)
	out = append(out, synthetic)
	out = append(out, messages[cut:]...)
	return out, nil
}

func (c *Compactor) shouldCompress(messages []*models.Message) bool {
	if c.Trigger.TriggerMessageCount > 0 && len(messages) >= c.Trigger.TriggerMessageCount {
		return true
	}
	if c.Trigger.TriggerTokens > 0 {
		total := EstimateMessagesTokens(toCompactionMessages(messages))
		if total >= c.Trigger.TriggerTokens {
			return true
		}
	}
	return false
}

// cutIndex finds the youngest index that keeps RetentionMessages intact
// in the suffix, backed up if necessary so it never falls between an
// assistant's tool_calls and their matching tool results.
func (c *Compactor) cutIndex(messages []*models.Message) int {
	retain := c.Trigger.RetentionMessages
	if retain <= 0 {
		retain = 1
	}
	cut := len(messages) - retain
	if cut <= 0 {
		return 0
	}

	for cut > 0 && splitsToolCallPair(messages, cut) {
		cut--
	}
	return cut
}

// splitsToolCallPair reports whether cutting messages at index cut would
// separate an assistant's tool_calls (in messages[:cut]) from one of its
// role=tool results (in messages[cut:]).
func splitsToolCallPair(messages []*models.Message, cut int) bool {
	pending := make(map[string]bool)
	for _, m := range messages[:cut] {
		if m.Role == models.RoleAssistant {
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		}
		if m.Role == models.RoleTool {
			delete(pending, m.ToolCallID)
		}
	}
	if len(pending) == 0 {
		return false
	}
	for _, m := range messages[cut:] {
		if m.Role == models.RoleTool && pending[m.ToolCallID] {
			return true
		}
	}
	return false
}

func toCompactionMessages(messages []*models.Message) []*Message {
	out := make([]*Message, 0, len(messages))
	for _, m := range messages {
		toolCalls, _ := json.Marshal(m.ToolCalls)
		out = append(out, &Message{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: int64(m.Timestamp),
			ID:        m.ID,
			ToolCalls: string(toolCalls),
		})
	}
	return out
}
