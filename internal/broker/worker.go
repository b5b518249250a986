package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/internal/taskorchestrator"
	"github.com/agentexec/core/pkg/models"
)

// Worker is the thin shim spec.md §4.10 describes: it claims tasks and
// invokes the Task Orchestrator (C8); it never loads agent code
// itself, which is what keeps a worker process cheap to scale
// horizontally.
type Worker struct {
	id    string
	store Store

	sessions store.SessionStore
	pool     *taskorchestrator.Pool
	monitor  *taskorchestrator.Monitor

	workspaceRoot string
	runMode       string
	storeEnv      map[string]string

	pollInterval  time.Duration
	leaseDuration time.Duration

	logger *slog.Logger
}

// WorkerConfig carries everything a Worker needs to turn a claimed
// Task into a running agent container.
type WorkerConfig struct {
	ID            string
	Store         Store
	Sessions      store.SessionStore
	Pool          *taskorchestrator.Pool
	Monitor       *taskorchestrator.Monitor
	WorkspaceRoot string
	RunMode       string
	StoreEnv      map[string]string
	PollInterval  time.Duration
	LeaseDuration time.Duration
	Logger        *slog.Logger
}

// NewWorker constructs a Worker, applying spec.md's default poll
// interval and lease duration when unset.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = time.Minute
	}
	return &Worker{
		id:            cfg.ID,
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		pool:          cfg.Pool,
		monitor:       cfg.Monitor,
		workspaceRoot: cfg.WorkspaceRoot,
		runMode:       cfg.RunMode,
		storeEnv:      cfg.StoreEnv,
		pollInterval:  cfg.PollInterval,
		leaseDuration: cfg.LeaseDuration,
		logger:        cfg.Logger,
	}
}

// Run polls for claimable tasks until ctx is canceled, running each
// claimed task to completion before claiming the next. Within one
// worker, task execution is sequential; horizontal scale comes from
// running more Worker processes against the same Store, per spec.md
// §5's "three independently scalable processes".
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		task, err := w.store.Claim(ctx, w.id, w.leaseDuration)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			if w.logger != nil {
				w.logger.Error("claim failed", "worker_id", w.id, "error", err)
			}
			continue
		}

		w.runTask(ctx, task)
	}
}

func (w *Worker) runTask(ctx context.Context, task *Task) {
	session, err := w.sessions.GetSession(ctx, task.SessionID)
	if err != nil {
		w.fail(ctx, task, fmt.Errorf("get session: %w", err))
		return
	}

	spec := taskorchestrator.BuildSpec(
		session.ID,
		session.WorkspaceID,
		string(session.Framework),
		w.runMode,
		filepath.Join(w.workspaceRoot, session.WorkspaceID),
		w.storeEnv,
	)

	containerID, err := w.pool.Acquire(ctx, spec)
	if err != nil {
		w.fail(ctx, task, fmt.Errorf("acquire container: %w", err))
		return
	}
	defer w.pool.Release()

	if err := w.sessions.SetRunning(ctx, session.ID, true); err != nil && w.logger != nil {
		w.logger.Warn("set running failed", "session_id", session.ID, "error", err)
	}

	renewCtx, stopRenew := context.WithCancel(ctx)
	defer stopRenew()
	go w.renewLeaseUntil(renewCtx, task)

	finish, err := w.monitor.Watch(ctx, session.ID, containerID, spec.AutoRemove)

	if setErr := w.sessions.SetRunning(ctx, session.ID, false); setErr != nil && w.logger != nil {
		w.logger.Warn("clear running failed", "session_id", session.ID, "error", setErr)
	}

	if err != nil {
		w.fail(ctx, task, fmt.Errorf("monitor: %w", err))
		return
	}

	// The broker's job was to get the run to a terminal state; it
	// reached one, so the task is done regardless of the run's own
	// outcome (success/timeout/stopped) — that distinction lives in
	// the finish event, not in the broker's bookkeeping.
	reason := ""
	if finish.Data.Status != models.FinishSuccess {
		reason = string(finish.Data.Status) + ": " + finish.Data.Reason
	}
	w.complete(ctx, task, StatusDone, reason)
}

// renewLeaseUntil keeps a long-running task's lease alive so the
// reaper never reclaims work that is still genuinely in progress; the
// monitor loop's task timeout (default 1800s) is the real backstop
// against a run that never finishes.
func (w *Worker) renewLeaseUntil(ctx context.Context, task *Task) {
	interval := w.leaseDuration / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.RenewLease(ctx, task.ID, w.id, w.leaseDuration); err != nil && w.logger != nil {
				w.logger.Warn("renew lease failed", "task_id", task.ID, "error", err)
			}
		}
	}
}

func (w *Worker) complete(ctx context.Context, task *Task, status Status, reason string) {
	if err := w.store.Complete(ctx, task.ID, status, reason); err != nil && w.logger != nil {
		w.logger.Error("complete failed", "task_id", task.ID, "error", err)
	}
}

func (w *Worker) fail(ctx context.Context, task *Task, err error) {
	if w.logger != nil {
		w.logger.Error("task failed", "task_id", task.ID, "session_id", task.SessionID, "error", err)
	}
	w.complete(ctx, task, StatusFailed, err.Error())
}
