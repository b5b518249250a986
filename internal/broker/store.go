// Package broker implements the Background Worker Broker (C10): a
// durable at-least-once task queue between the SSE Gateway and the
// Task Orchestrator, with a lease-based claim protocol so a crashed
// worker's tasks are eventually picked up by another.
package broker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("broker: not found")
)

// Status is a task's point-in-time lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Task is one unit of broker-managed work: "run the agent for this
// session". It never carries the prompt — the agent container
// rediscovers that from the Store (spec.md §4.9) — so a Task is cheap
// to enqueue, claim, and requeue.
type Task struct {
	ID        string
	SessionID string
	Status    Status
	CreatedAt time.Time

	// ClaimedBy, ClaimedAt and LeaseExpiresAt are set when a worker
	// claims the task and cleared (ClaimedBy="") when it completes,
	// fails, or its lease is reclaimed by the reaper.
	ClaimedBy      string
	ClaimedAt      *time.Time
	LeaseExpiresAt *time.Time

	FinishedAt *time.Time
	Error      string
}

// Store persists Tasks and implements the claim/renew/complete
// protocol that gives the Broker its at-least-once guarantee across a
// pool of worker replicas.
type Store interface {
	// Enqueue inserts a new queued task for sessionID. Enqueuing a
	// session that already has a queued or running task is a no-op
	// that returns the existing task's id (idempotent: a client
	// double-submitting generate should not spawn two containers).
	Enqueue(ctx context.Context, sessionID string) (string, error)

	// Claim atomically picks one queued task (or a task whose lease
	// expired), marks it running, assigns it to workerID, and sets its
	// lease to expire after leaseDuration. Returns ErrNotFound if no
	// claimable task exists.
	Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*Task, error)

	// RenewLease extends a claimed task's lease; called periodically by
	// the worker executing it so a slow-but-alive run isn't reclaimed.
	RenewLease(ctx context.Context, taskID, workerID string, leaseDuration time.Duration) error

	// Complete marks a task done or failed and clears its claim.
	Complete(ctx context.Context, taskID string, status Status, taskErr string) error

	// ReapExpired requeues every running task whose lease has expired,
	// returning how many were requeued. Called periodically by the
	// reaper.
	ReapExpired(ctx context.Context) (int, error)

	// Get returns a task by id, for status inspection and tests.
	Get(ctx context.Context, taskID string) (*Task, error)
}
