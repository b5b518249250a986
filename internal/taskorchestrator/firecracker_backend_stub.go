//go:build !linux

package taskorchestrator

import (
	"context"
	"errors"
	"time"
)

// ErrNotSupported is returned by every FirecrackerBackend method on
// platforms without Firecracker/KVM support.
var ErrNotSupported = errors.New("firecracker backend requires linux")

// FirecrackerBackend is a non-functional stub outside Linux, so the
// package still builds (and its tests using a fake Backend still run)
// on a development laptop.
type FirecrackerBackend struct{}

// FirecrackerConfig mirrors the Linux build's field set.
type FirecrackerConfig struct {
	KernelPath string
	RootFSPath string
	BootArgs   string
}

func NewFirecrackerBackend(cfg FirecrackerConfig) *FirecrackerBackend { return &FirecrackerBackend{} }

func (b *FirecrackerBackend) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	return "", ErrNotSupported
}

func (b *FirecrackerBackend) Start(ctx context.Context, id string) error { return ErrNotSupported }

func (b *FirecrackerBackend) Stop(ctx context.Context, id string, grace time.Duration) error {
	return ErrNotSupported
}

func (b *FirecrackerBackend) Inspect(ctx context.Context, id string) (Status, error) {
	return Status{}, ErrNotSupported
}

func (b *FirecrackerBackend) Remove(ctx context.Context, id string) error { return ErrNotSupported }
