package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps tasks in memory, for tests and single-process
// development.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	// bySession indexes the most recent non-terminal task for a
	// session, so Enqueue can be idempotent per session.
	bySession map[string]string
	order     []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:     make(map[string]*Task),
		bySession: make(map[string]string),
	}
}

func (m *MemoryStore) Enqueue(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.bySession[sessionID]; ok {
		if t := m.tasks[id]; t != nil && (t.Status == StatusQueued || t.Status == StatusRunning) {
			return id, nil
		}
	}

	task := &Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	m.tasks[task.ID] = task
	m.bySession[sessionID] = task.ID
	m.order = append(m.order, task.ID)
	return task.ID, nil
}

func (m *MemoryStore) Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, id := range m.order {
		t := m.tasks[id]
		claimable := t.Status == StatusQueued ||
			(t.Status == StatusRunning && t.LeaseExpiresAt != nil && t.LeaseExpiresAt.Before(now))
		if !claimable {
			continue
		}
		lease := now.Add(leaseDuration)
		t.Status = StatusRunning
		t.ClaimedBy = workerID
		t.ClaimedAt = &now
		t.LeaseExpiresAt = &lease
		clone := *t
		return &clone, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) RenewLease(ctx context.Context, taskID, workerID string, leaseDuration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.ClaimedBy != workerID {
		return ErrNotFound
	}
	lease := time.Now().Add(leaseDuration)
	t.LeaseExpiresAt = &lease
	return nil
}

func (m *MemoryStore) Complete(ctx context.Context, taskID string, status Status, taskErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	t.Status = status
	t.FinishedAt = &now
	t.Error = taskErr
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	t.LeaseExpiresAt = nil
	return nil
}

func (m *MemoryStore) ReapExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var requeued int
	for _, t := range m.tasks {
		if t.Status == StatusRunning && t.LeaseExpiresAt != nil && t.LeaseExpiresAt.Before(now) {
			t.Status = StatusQueued
			t.ClaimedBy = ""
			t.ClaimedAt = nil
			t.LeaseExpiresAt = nil
			requeued++
		}
	}
	return requeued, nil
}

func (m *MemoryStore) Get(ctx context.Context, taskID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}
