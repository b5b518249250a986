package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// denyListedCommands blocks the obvious ways an agent could escape its
// container or corrupt the host, independent of whatever sandboxing the
// container backend itself applies.
var denyListedCommands = []string{
	"rm -rf /", "mkfs", "dd if=", ":(){ :|:& };:", "shutdown", "reboot", "sudo",
}

// ContainerExecutor runs a command inside the session's isolated agent
// container and returns its combined output. internal/taskorchestrator
// implements this; tools depends only on the interface to avoid an
// import cycle back to the orchestrator package.
type ContainerExecutor interface {
	Exec(ctx context.Context, sessionID string, command string, timeout time.Duration) (stdout string, exitCode int, err error)
}

// ExecArgs is the schema for run_command.
type ExecArgs struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to run inside the container"`
}

// ExecTool runs a shell command inside a session's container, subject to
// a fixed deny-list and a bounded wall-clock timeout.
type ExecTool struct {
	sessionID string
	executor  ContainerExecutor
	timeout   time.Duration
}

// NewExecTool returns an ExecTool bound to one session's container.
func NewExecTool(sessionID string, executor ContainerExecutor, timeout time.Duration) *ExecTool {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ExecTool{sessionID: sessionID, executor: executor, timeout: timeout}
}

func (e *ExecTool) Name() string { return "run_command" }
func (e *ExecTool) Description() string {
	return "Run a shell command inside the session's isolated container."
}
func (e *ExecTool) Schema() json.RawMessage { return GenerateSchema(ExecArgs{}) }

func (e *ExecTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a ExecArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	for _, denied := range denyListedCommands {
		if strings.Contains(a.Command, denied) {
			return &Result{Content: fmt.Sprintf("command rejected: contains %q", denied), IsError: true}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, code, err := e.executor.Exec(ctx, e.sessionID, a.Command, e.timeout)
	if err != nil {
		return &Result{Content: fmt.Sprintf("exec failed: %v", err), IsError: true}, nil
	}
	if code != 0 {
		return &Result{Content: fmt.Sprintf("exit %d\n%s", code, out), IsError: true}, nil
	}
	return &Result{Content: out}, nil
}
