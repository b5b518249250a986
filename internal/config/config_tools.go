package config

import "time"

// ToolsConfig configures the Tool Registry (C3): container-exec bounds
// and the per-agent tool-call iteration cap (spec.md §4.3, §4.4).
type ToolsConfig struct {
	ContainerExec ContainerExecConfig `yaml:"container_exec"`
	MaxIterations int                 `yaml:"max_iterations"`
}

// ContainerExecConfig bounds the container-exec tool: a deny-list of
// destructive command patterns, and limits on output size and
// execution wall-clock.
type ContainerExecConfig struct {
	DenyList       []string      `yaml:"deny_list"`
	MaxOutputBytes int           `yaml:"max_output_bytes"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DefaultContainerExecDenyList matches the destructive patterns spec.md
// §4.3 names explicitly.
func DefaultContainerExecDenyList() []string {
	return []string{"rm -rf /", ":(){ :|:& };:"}
}
