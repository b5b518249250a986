package store

import (
	"context"
	"testing"

	"github.com/agentexec/core/pkg/models"
)

func TestMemoryStoreAppendAndEventsSince(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for i, ts := range []float64{1, 2, 3} {
		_, err := ms.AppendEvent(ctx, &models.Event{
			ID:        string(rune('a' + i)),
			SessionID: "s1",
			Timestamp: ts,
			Type:      models.EventCustom,
		})
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	since := float64(1)
	got, err := ms.EventsSince(ctx, "s1", &since, 0)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Timestamp != 2 || got[1].Timestamp != 3 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestMemoryStoreAppendEventIdempotent(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	id1, err := ms.AppendEvent(ctx, &models.Event{ID: "dup", SessionID: "s1", Type: models.EventCustom})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	id2, err := ms.AppendEvent(ctx, &models.Event{ID: "dup", SessionID: "s1", Type: models.EventCustom})
	if err != nil {
		t.Fatalf("AppendEvent (dup): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %q != %q", id1, id2)
	}

	got, err := ms.EventsSince(ctx, "s1", nil, 0)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (duplicate must not double-append)", len(got))
	}
}

func TestMemoryStoreFinishEvent(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.FinishEvent(ctx, "s1"); err != ErrNotFound {
		t.Fatalf("FinishEvent before any event: err = %v, want ErrNotFound", err)
	}

	status := models.FinishSuccess
	_, err := ms.AppendEvent(ctx, &models.Event{
		SessionID: "s1",
		Type:      models.EventFinish,
		Data:      models.EventData{Status: status},
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	fin, err := ms.FinishEvent(ctx, "s1")
	if err != nil {
		t.Fatalf("FinishEvent: %v", err)
	}
	if fin.Data.Status != models.FinishSuccess {
		t.Fatalf("Status = %q, want success", fin.Data.Status)
	}
}

func TestMemoryStoreAppendMessageRequiresPriorToolCall(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, err := ms.AppendMessage(ctx, &models.Message{
		SessionID:  "s1",
		Role:       models.RoleTool,
		ToolCallID: "call-1",
	})
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound (no prior tool_call)", err)
	}

	_, err = ms.AppendMessage(ctx, &models.Message{
		SessionID: "s1",
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "call-1", Name: "write_file"}},
	})
	if err != nil {
		t.Fatalf("AppendMessage (assistant): %v", err)
	}

	_, err = ms.AppendMessage(ctx, &models.Message{
		SessionID:  "s1",
		Role:       models.RoleTool,
		ToolCallID: "call-1",
	})
	if err != nil {
		t.Fatalf("AppendMessage (tool): %v", err)
	}
}

func TestMemoryStoreListMessagesOrder(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		if _, err := ms.AppendMessage(ctx, &models.Message{
			SessionID: "s1",
			Role:      models.RoleUser,
			Content:   content,
		}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	asc, err := ms.ListMessages(ctx, "s1", 0, OrderAscending)
	if err != nil {
		t.Fatalf("ListMessages asc: %v", err)
	}
	if asc[0].Content != "first" || asc[2].Content != "third" {
		t.Fatalf("unexpected ascending order: %+v", asc)
	}

	desc, err := ms.ListMessages(ctx, "s1", 0, OrderDescending)
	if err != nil {
		t.Fatalf("ListMessages desc: %v", err)
	}
	if desc[0].Content != "third" {
		t.Fatalf("unexpected descending order: %+v", desc)
	}

	last, err := ms.LastMessage(ctx, "s1")
	if err != nil {
		t.Fatalf("LastMessage: %v", err)
	}
	if last.Content != "third" {
		t.Fatalf("LastMessage = %q, want third", last.Content)
	}
}

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	session := &models.Session{ID: "s1", DisplayName: "todo app", CreatorID: "u1", Framework: models.FrameworkNextJS}
	if err := ms.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := ms.CreateSession(ctx, session); err != ErrAlreadyExists {
		t.Fatalf("CreateSession duplicate: err = %v, want ErrAlreadyExists", err)
	}

	got, err := ms.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CreatorID != "u1" {
		t.Fatalf("CreatorID = %q, want u1", got.CreatorID)
	}

	if _, err := ms.GetSession(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("GetSession missing: err = %v, want ErrNotFound", err)
	}

	if err := ms.SetRunning(ctx, "s1", true); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}
	got, _ = ms.GetSession(ctx, "s1")
	if !got.IsRunning {
		t.Fatal("IsRunning = false, want true after SetRunning")
	}

	list, err := ms.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	other, err := ms.ListSessions(ctx, "u2")
	if err != nil {
		t.Fatalf("ListSessions other user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("len(other) = %d, want 0 (session owned by a different creator)", len(other))
	}
}

func TestMemoryStoreStopSignal(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	stopped, err := ms.IsStopped(ctx, "s1")
	if err != nil || stopped {
		t.Fatalf("IsStopped = %v, %v, want false, nil", stopped, err)
	}

	if err := ms.SignalStop(ctx, "s1"); err != nil {
		t.Fatalf("SignalStop: %v", err)
	}
	stopped, err = ms.IsStopped(ctx, "s1")
	if err != nil || !stopped {
		t.Fatalf("IsStopped = %v, %v, want true, nil", stopped, err)
	}

	if err := ms.ClearStop(ctx, "s1"); err != nil {
		t.Fatalf("ClearStop: %v", err)
	}
	stopped, err = ms.IsStopped(ctx, "s1")
	if err != nil || stopped {
		t.Fatalf("IsStopped after clear = %v, %v, want false, nil", stopped, err)
	}
}
