// Package taskorchestrator implements the Task Orchestrator (C8): it
// builds an execution container spec per run, starts the container,
// monitors it against the Store's finish event, and synthesises a
// finish event of its own when the container exits, times out, or is
// explicitly stopped without ever having written one.
package taskorchestrator

import (
	"context"
	"fmt"
	"time"
)

// ContainerSpec is the fully-resolved description of the container one
// run executes inside. It never names a backend-specific concept
// (firecracker VMID, docker container id); backends translate it.
type ContainerSpec struct {
	// Name is the deterministic container name derived from the
	// session id, so a crash-restarted orchestrator can find and
	// reattach to (or remove) an existing container instead of
	// double-spawning.
	Name string

	Image     string
	MemoryMB  int64
	CPUs      float64
	Env       map[string]string

	// WorkspaceHostPath is the workspace directory's path on the
	// *host* (not inside the orchestrator's own container) — bind
	// mounts must resolve relative to the container runtime, which
	// runs on the host, not inside this process's namespace.
	WorkspaceHostPath  string
	WorkspaceMountPath string

	AutoRemove bool
}

// DefaultImage is used when no image is configured explicitly.
const DefaultImage = "agentexec/runner:latest"

// DefaultMemoryMB and DefaultCPUs are the resource caps applied absent
// an explicit override.
const (
	DefaultMemoryMB = 2048
	DefaultCPUs     = 1.0
)

// BuildSpec assembles the ContainerSpec for one run, per the
// environment contract: SESSION_ID, WORKSPACE_ID, FRAMEWORK, RUN_MODE,
// MGX_AGENT_API_KEY (set equal to the session id so the container can
// authenticate callbacks into the SSE Gateway's protocol-peer surface).
func BuildSpec(sessionID, workspaceID, framework, runMode, workspaceHostPath string, storeEnv map[string]string) ContainerSpec {
	env := map[string]string{
		"SESSION_ID":        sessionID,
		"WORKSPACE_ID":      workspaceID,
		"FRAMEWORK":         framework,
		"RUN_MODE":          runMode,
		"MGX_AGENT_API_KEY": sessionID,
	}
	for k, v := range storeEnv {
		env[k] = v
	}

	return ContainerSpec{
		Name:               fmt.Sprintf("agentexec-run-%s", sessionID),
		Image:              DefaultImage,
		MemoryMB:           DefaultMemoryMB,
		CPUs:               DefaultCPUs,
		Env:                env,
		WorkspaceHostPath:  workspaceHostPath,
		WorkspaceMountPath: "/workspace",
		AutoRemove:         true,
	}
}

// Status is a backend's point-in-time read of a container.
type Status struct {
	Exists   bool
	Running  bool
	ExitCode *int
}

// Backend is the minimal lifecycle contract the monitor loop needs.
// internal/taskorchestrator never imports a concrete backend package
// directly from its exported API — callers wire one in, keeping this
// package portable across firecracker, docker, or a test double.
type Backend interface {
	// Create prepares (but does not start) a container from spec and
	// returns a backend-internal id used by later calls.
	Create(ctx context.Context, spec ContainerSpec) (id string, err error)
	Start(ctx context.Context, id string) error
	// Stop requests graceful shutdown (SIGTERM-equivalent); if the
	// container has not exited after grace elapses the backend is
	// expected to force-kill it before returning.
	Stop(ctx context.Context, id string, grace time.Duration) error
	Inspect(ctx context.Context, id string) (Status, error)
	Remove(ctx context.Context, id string) error
}
