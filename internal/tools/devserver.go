package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

// devServerCommand maps a Framework (per pkg/models.Framework) to the
// command that boots its dev server inside the container, per spec.md's
// container environment section.
var devServerCommand = map[string][]string{
	"nextjs":       {"npm", "run", "dev"},
	"fastapi-vite": {"sh", "-c", "uvicorn main:app --reload & npm run dev --prefix frontend"},
}

// DevServerManager starts, tracks and stops one dev-server process per
// session, PID-file and log-tail style: a child process is detached, its
// PID recorded, and its stdout/stderr captured to a log file a caller can
// tail for the dev_server.status custom event.
type DevServerManager struct {
	mu        sync.Mutex
	root      string
	framework string
	procs     map[string]*devServerProc
}

type devServerProc struct {
	cmd     *exec.Cmd
	pidFile string
	logFile string
}

// NewDevServerManager returns a manager rooted at a workspace directory
// for the given framework.
func NewDevServerManager(root, framework string) *DevServerManager {
	return &DevServerManager{root: root, framework: framework, procs: make(map[string]*devServerProc)}
}

// Start launches the dev server for sessionID if not already running.
func (d *DevServerManager) Start(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, running := d.procs[sessionID]; running {
		return nil
	}

	argv, ok := devServerCommand[d.framework]
	if !ok {
		return fmt.Errorf("tools: no dev server command for framework %q", d.framework)
	}

	logPath := filepath.Join(d.root, ".devserver.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("tools: create dev server log: %w", err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = d.root
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("tools: start dev server: %w", err)
	}

	pidPath := filepath.Join(d.root, ".devserver.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		return fmt.Errorf("tools: write pid file: %w", err)
	}

	d.procs[sessionID] = &devServerProc{cmd: cmd, pidFile: pidPath, logFile: logPath}
	return nil
}

// Stop terminates the dev server for sessionID, if running.
func (d *DevServerManager) Stop(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.procs[sessionID]
	if !ok {
		return nil
	}
	delete(d.procs, sessionID)

	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("tools: kill dev server: %w", err)
		}
	}
	os.Remove(p.pidFile)
	return nil
}

// TailLog returns the last n bytes of the dev server's captured log.
func (d *DevServerManager) TailLog(sessionID string, n int64) (string, error) {
	d.mu.Lock()
	p, ok := d.procs[sessionID]
	d.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("tools: no dev server running for session %s", sessionID)
	}

	f, err := os.Open(p.logFile)
	if err != nil {
		return "", fmt.Errorf("tools: open dev server log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("tools: stat dev server log: %w", err)
	}
	offset := int64(0)
	if info.Size() > n {
		offset = info.Size() - n
	}
	if _, err := f.Seek(offset, 0); err != nil {
		return "", fmt.Errorf("tools: seek dev server log: %w", err)
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.Read(buf); err != nil {
		return "", fmt.Errorf("tools: read dev server log: %w", err)
	}
	return string(buf), nil
}

// DevServerStatusArgs is the schema for dev_server_status.
type DevServerStatusArgs struct{}

// DevServerStatusTool reports whether the dev server is running and
// surfaces recent log output, for the agent to diagnose a failed boot.
type DevServerStatusTool struct {
	sessionID string
	manager   *DevServerManager
}

// NewDevServerStatusTool returns a tool bound to one session's manager.
func NewDevServerStatusTool(sessionID string, manager *DevServerManager) *DevServerStatusTool {
	return &DevServerStatusTool{sessionID: sessionID, manager: manager}
}

func (s *DevServerStatusTool) Name() string        { return "dev_server_status" }
func (s *DevServerStatusTool) Description() string { return "Report the session's dev server status and recent log output." }
func (s *DevServerStatusTool) Schema() json.RawMessage {
	return GenerateSchema(DevServerStatusArgs{})
}

func (s *DevServerStatusTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	log, err := s.manager.TailLog(s.sessionID, 4096)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}
	return &Result{Content: log}, nil
}
