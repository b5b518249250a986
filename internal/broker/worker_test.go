package broker

import (
	"context"
	"testing"
	"time"

	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/internal/taskorchestrator"
	"github.com/agentexec/core/pkg/models"
)

type fakeBackend struct {
	status taskorchestrator.Status
}

func (f *fakeBackend) Create(ctx context.Context, spec taskorchestrator.ContainerSpec) (string, error) {
	return spec.Name, nil
}
func (f *fakeBackend) Start(ctx context.Context, id string) error { return nil }
func (f *fakeBackend) Stop(ctx context.Context, id string, grace time.Duration) error {
	return nil
}
func (f *fakeBackend) Inspect(ctx context.Context, id string) (taskorchestrator.Status, error) {
	return f.status, nil
}
func (f *fakeBackend) Remove(ctx context.Context, id string) error { return nil }

func TestWorkerRunTaskCompletesOnFinishEvent(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	session := &models.Session{ID: "sess-1", WorkspaceID: "ws-1", Framework: models.FrameworkNextJS}
	if err := ms.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	backend := &fakeBackend{status: taskorchestrator.Status{Exists: true, Running: true}}
	pool, err := taskorchestrator.NewPool(backend, 1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	monitor := taskorchestrator.NewMonitor(ms, ms, backend).WithPollInterval(5 * time.Millisecond)

	brokerStore := NewMemoryStore()
	taskID, err := brokerStore.Enqueue(ctx, session.ID)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	task, err := brokerStore.Claim(ctx, "worker-1", time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	worker := NewWorker(WorkerConfig{
		ID:            "worker-1",
		Store:         brokerStore,
		Sessions:      ms,
		Pool:          pool,
		Monitor:       monitor,
		WorkspaceRoot: "/workspaces",
		RunMode:       "memory",
		LeaseDuration: time.Minute,
	})

	go func() {
		time.Sleep(15 * time.Millisecond)
		_, _ = ms.AppendEvent(ctx, &models.Event{
			SessionID: session.ID,
			Type:      models.EventFinish,
			Data:      models.EventData{Status: models.FinishSuccess},
		})
	}()

	done := make(chan struct{})
	go func() {
		worker.runTask(ctx, task)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runTask did not complete in time")
	}

	got, err := brokerStore.Get(ctx, taskID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusDone {
		t.Errorf("task status = %q, want done", got.Status)
	}

	gotSession, err := ms.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if gotSession.IsRunning {
		t.Error("session left IsRunning=true after task completed")
	}
}
