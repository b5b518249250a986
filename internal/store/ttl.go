package store

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentexec/core/internal/observability"
)

// Sweeper periodically deletes events and messages older than the
// configured TTLPolicy. Durable stores only; MemoryStore callers that
// need bounded memory should size their own eviction separately.
type Sweeper struct {
	cron   *cron.Cron
	store  *CockroachStore
	policy TTLPolicy
	logger *observability.Logger
	entry  cron.EntryID
}

// NewSweeper builds a Sweeper that has not yet been started.
func NewSweeper(store *CockroachStore, policy TTLPolicy, logger *observability.Logger) *Sweeper {
	return &Sweeper{
		cron:   cron.New(),
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// Start schedules the sweep to run on the given cron spec (e.g. "@hourly")
// and starts the scheduler's goroutine.
func (s *Sweeper) Start(spec string) error {
	id, err := s.cron.AddFunc(spec, s.sweepOnce)
	if err != nil {
		return err
	}
	s.entry = id
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, blocking until any in-flight sweep completes.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	if n, err := s.store.DeleteEventsOlderThan(ctx, now.Add(-s.policy.EventTTL)); err != nil {
		s.logger.Error(ctx, "store: event ttl sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info(ctx, "store: event ttl sweep", "deleted", n)
	}

	if n, err := s.store.DeleteMessagesOlderThan(ctx, now.Add(-s.policy.MessageTTL)); err != nil {
		s.logger.Error(ctx, "store: message ttl sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info(ctx, "store: message ttl sweep", "deleted", n)
	}
}
