package compaction

import (
	"context"
	"testing"

	"github.com/agentexec/core/pkg/models"
)

func TestCompactorPassthroughBelowTrigger(t *testing.T) {
	c := &Compactor{
		Trigger:  TriggerConfig{TriggerMessageCount: 100, RetentionMessages: 2},
		Strategy: SlidingWindowStrategy{},
	}
	messages := []*models.Message{
		{SessionID: "s1", Role: models.RoleUser, Content: "hi"},
	}
	out, err := c.Before(context.Background(), messages)
	if err != nil {
		t.Fatalf("Before: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (pass-through)", len(out))
	}
}

func TestCompactorCompressesAboveTrigger(t *testing.T) {
	c := &Compactor{
		Trigger:  TriggerConfig{TriggerMessageCount: 3, RetentionMessages: 1},
		Strategy: SlidingWindowStrategy{},
	}
	messages := []*models.Message{
		{SessionID: "s1", Role: models.RoleUser, Content: "first"},
		{SessionID: "s1", Role: models.RoleAssistant, Content: "second"},
		{SessionID: "s1", Role: models.RoleUser, Content: "third"},
	}
	out, err := c.Before(context.Background(), messages)
	if err != nil {
		t.Fatalf("Before: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (1 digest + 1 retained)", len(out))
	}
	if out[len(out)-1].Content != "third" {
		t.Fatalf("suffix not preserved verbatim: %+v", out[len(out)-1])
	}
}

func TestCompactorNeverSplitsToolCallPair(t *testing.T) {
	c := &Compactor{
		Trigger:  TriggerConfig{TriggerMessageCount: 3, RetentionMessages: 1},
		Strategy: SlidingWindowStrategy{},
	}
	messages := []*models.Message{
		{SessionID: "s1", Role: models.RoleUser, Content: "do the thing"},
		{SessionID: "s1", Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "call-1", Name: "write_file"}}},
		{SessionID: "s1", Role: models.RoleTool, ToolCallID: "call-1", Content: "wrote file"},
	}
	out, err := c.Before(context.Background(), messages)
	if err != nil {
		t.Fatalf("Before: %v", err)
	}

	hasToolCall, hasToolResult := false, false
	for _, m := range out {
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			hasToolCall = true
		}
		if m.Role == models.RoleTool {
			hasToolResult = true
		}
	}
	if hasToolResult && !hasToolCall {
		t.Fatal("tool result kept without its originating tool_call: invariant violated")
	}
}

func TestCompactorFallsBackOnStrategyError(t *testing.T) {
	c := &Compactor{
		Trigger:  TriggerConfig{TriggerMessageCount: 1, RetentionMessages: 1},
		Strategy: failingStrategy{},
	}
	messages := []*models.Message{
		{SessionID: "s1", Role: models.RoleUser, Content: "first"},
		{SessionID: "s1", Role: models.RoleUser, Content: "second"},
	}
	out, err := c.Before(context.Background(), messages)
	if err != nil {
		t.Fatalf("Before: %v", err)
	}
	if len(out) != len(messages) {
		t.Fatalf("len(out) = %d, want pass-through of %d on summarizer failure", len(out), len(messages))
	}
}

type failingStrategy struct{}

func (failingStrategy) Compress(ctx context.Context, prefix []*Message) (string, error) {
	return "", errFailingStrategy
}

var errFailingStrategy = &strategyError{"summarizer unavailable"}

type strategyError struct{ msg string }

func (e *strategyError) Error() string { return e.msg }
