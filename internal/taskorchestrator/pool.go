package taskorchestrator

import (
	"context"
	"errors"
	"fmt"
)

// Pool bounds how many containers run concurrently. Unlike the sandbox
// package's per-language pools of reusable executors, one run always
// maps to exactly one fresh ContainerSpec (the session id is baked
// into env and name), so the pool holds capacity slots rather than
// reusable executors — a buffered channel used as a semaphore.
type Pool struct {
	backend Backend
	sem     chan struct{}
}

// NewPool returns a Pool bounded to maxSize concurrently active
// containers.
func NewPool(backend Backend, maxSize int) (*Pool, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Pool{backend: backend, sem: make(chan struct{}, maxSize)}, nil
}

// Acquire blocks until a capacity slot is free (or ctx is canceled),
// then creates and starts a container from spec.
func (p *Pool) Acquire(ctx context.Context, spec ContainerSpec) (string, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	id, err := p.backend.Create(ctx, spec)
	if err != nil {
		<-p.sem
		return "", fmt.Errorf("create container: %w", err)
	}
	if err := p.backend.Start(ctx, id); err != nil {
		<-p.sem
		return "", fmt.Errorf("start container: %w", err)
	}
	return id, nil
}

// Release returns a run's capacity slot after its container has been
// removed. Call exactly once per successful Acquire.
func (p *Pool) Release() {
	select {
	case <-p.sem:
	default:
	}
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() PoolStats {
	return PoolStats{Active: len(p.sem), MaxSize: cap(p.sem)}
}

// PoolStats is a point-in-time occupancy snapshot.
type PoolStats struct {
	Active  int
	MaxSize int
}
