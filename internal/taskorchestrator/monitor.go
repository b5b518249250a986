package taskorchestrator

import (
	"context"
	"time"

	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/pkg/models"
)

// DefaultPollInterval and DefaultTaskTimeout are the P-second poll
// interval and the task wall-clock budget, per spec.md §4.8.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultTaskTimeout  = 1800 * time.Second
	stopGrace           = 10 * time.Second
)

// Monitor supervises one run's container against the Store's finish
// event, the container's own liveness, the task timeout, and an
// explicit stop signal, synthesising and appending a finish event
// itself whenever the run ends without the agent container ever having
// written one.
type Monitor struct {
	events  store.EventStore
	stops   store.StopSignalStore
	backend Backend

	pollInterval time.Duration
	taskTimeout  time.Duration
}

// NewMonitor returns a Monitor with spec.md's default poll interval
// and task timeout.
func NewMonitor(events store.EventStore, stops store.StopSignalStore, backend Backend) *Monitor {
	return &Monitor{
		events:       events,
		stops:        stops,
		backend:      backend,
		pollInterval: DefaultPollInterval,
		taskTimeout:  DefaultTaskTimeout,
	}
}

// WithPollInterval and WithTaskTimeout override the defaults, for
// tests that can't wait 1800s for a timeout branch to exercise.
func (m *Monitor) WithPollInterval(d time.Duration) *Monitor { m.pollInterval = d; return m }
func (m *Monitor) WithTaskTimeout(d time.Duration) *Monitor  { m.taskTimeout = d; return m }

// Watch polls sessionID's container (identified by containerID) until a
// finish event appears, the container exits without one, the task
// timeout elapses, or an explicit stop signal is observed — whichever
// comes first — then removes the container (if autoRemove) and returns
// the terminal finish event. It never blocks past ctx's deadline.
func (m *Monitor) Watch(ctx context.Context, sessionID, containerID string, autoRemove bool) (*models.Event, error) {
	deadline := time.Now().Add(m.taskTimeout)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if existing, err := m.events.FinishEvent(ctx, sessionID); err == nil {
			m.cleanup(ctx, containerID, autoRemove)
			return existing, nil
		}

		if stopped, err := m.stops.IsStopped(ctx, sessionID); err == nil && stopped {
			_ = m.backend.Stop(ctx, containerID, stopGrace)
			return m.synthesize(ctx, sessionID, containerID, autoRemove, models.FinishStopped, "explicit-stop", nil)
		}

		status, err := m.backend.Inspect(ctx, containerID)
		if err == nil && status.Exists && !status.Running {
			return m.synthesize(ctx, sessionID, containerID, autoRemove, models.FinishFailed, "container-exited", status.ExitCode)
		}

		if time.Now().After(deadline) {
			_ = m.backend.Stop(ctx, containerID, stopGrace)
			return m.synthesize(ctx, sessionID, containerID, autoRemove, models.FinishTimeout, "timeout", nil)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return m.synthesize(ctx, sessionID, containerID, autoRemove, models.FinishTimeout, ctx.Err().Error(), nil)
		}
	}
}

// synthesize appends a finish event on the run's behalf, first
// re-checking the finish-event index so a real finish that landed
// between the caller's last check and now is never overwritten
// (idempotent-cleanup requirement of spec.md §4.8).
func (m *Monitor) synthesize(ctx context.Context, sessionID, containerID string, autoRemove bool, status models.FinishStatus, reason string, exitCode *int) (*models.Event, error) {
	m.cleanup(ctx, containerID, autoRemove)

	if existing, err := m.events.FinishEvent(ctx, sessionID); err == nil {
		return existing, nil
	}

	event := &models.Event{
		SessionID: sessionID,
		Type:      models.EventFinish,
		Data:      models.EventData{Status: status, Reason: reason, ExitCode: exitCode},
	}
	if _, err := m.events.AppendEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (m *Monitor) cleanup(ctx context.Context, containerID string, autoRemove bool) {
	if !autoRemove {
		return
	}
	_ = m.backend.Remove(ctx, containerID)
}
