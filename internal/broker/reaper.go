package broker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentexec/core/internal/observability"
)

// Reaper periodically requeues tasks whose lease expired without the
// worker that claimed them renewing it — the crash-recovery half of
// spec.md §4.10's at-least-once guarantee.
type Reaper struct {
	cron   *cron.Cron
	store  Store
	logger *observability.Logger
	entry  cron.EntryID
}

// NewReaper builds a Reaper that has not yet been started.
func NewReaper(store Store, logger *observability.Logger) *Reaper {
	return &Reaper{
		cron:   cron.New(),
		store:  store,
		logger: logger,
	}
}

// Start schedules the reap on the given cron spec (e.g. "@every 30s")
// and starts the scheduler's goroutine.
func (r *Reaper) Start(spec string) error {
	id, err := r.cron.AddFunc(spec, r.reapOnce)
	if err != nil {
		return err
	}
	r.entry = id
	r.cron.Start()
	return nil
}

// Stop halts the scheduler, blocking until any in-flight reap completes.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Reaper) reapOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := r.store.ReapExpired(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Error(ctx, "broker: reap expired failed", "error", err)
		}
		return
	}
	if n > 0 && r.logger != nil {
		r.logger.Info(ctx, "broker: reaped expired leases", "requeued", n)
	}
}
