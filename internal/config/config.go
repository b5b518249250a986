package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for every process of the Core: the
// SSE Gateway, the Broker workers, and the Task Orchestrator. Each
// process reads the same file and uses only the sections it needs.
type Config struct {
	Version          int                    `yaml:"version"`
	Server           ServerConfig           `yaml:"server"`
	Database         DatabaseConfig         `yaml:"database"`
	Auth             AuthConfig             `yaml:"auth"`
	LLM              LLMConfig              `yaml:"llm"`
	Tools            ToolsConfig            `yaml:"tools"`
	Observability    ObservabilityConfig    `yaml:"observability"`
	TaskOrchestrator TaskOrchestratorConfig `yaml:"task_orchestrator"`
	Broker           BrokerConfig           `yaml:"broker"`
	SSEGateway       SSEGatewayConfig       `yaml:"sse_gateway"`
	TTL              TTLConfig              `yaml:"ttl"`
}

// ServerConfig configures the HTTP listener shared by every process
// that exposes a port (the Gateway's API/SSE surface, the worker's and
// orchestrator's health/metrics surface).
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig configures the CockroachDB connection pool backing
// every durable store (events, messages, sessions, tasks).
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig mirrors internal/auth.Config: a JWKS URL and TTL. An empty
// JWKSURL disables bearer-token auth entirely (local/dev runs).
type AuthConfig struct {
	JWKSURL string        `yaml:"jwks_url"`
	JWKSTTL time.Duration `yaml:"jwks_ttl"`
}

// TaskOrchestratorConfig configures the per-task container backend (C8):
// the image/kernel defaults every ContainerSpec inherits, and the
// polling cadence of its finish-event monitor loop.
type TaskOrchestratorConfig struct {
	Image          string        `yaml:"image"`
	KernelPath     string        `yaml:"kernel_path"`
	RootFSPath     string        `yaml:"rootfs_path"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	TaskTimeout    time.Duration `yaml:"task_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// BrokerConfig configures the worker pool that claims queued tasks
// (C10): lease duration, polling cadence, and the stale-lease reaper.
type BrokerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	ReaperInterval time.Duration `yaml:"reaper_interval"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// SSEGatewayConfig configures the SSE polling loop (C9): how often the
// gateway polls the event store, how many events it batches per poll,
// and how long an idle stream stays open before closing without a
// finish event.
type SSEGatewayConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// TTLConfig configures retention for events and messages, mirroring
// store.TTLPolicy.
type TTLConfig struct {
	EventTTL      time.Duration `yaml:"event_ttl"`
	MessageTTL    time.Duration `yaml:"message_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Load reads and parses the configuration file, expanding environment
// variables and rejecting unrecognized fields.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Auth.JWKSTTL == 0 {
		cfg.Auth.JWKSTTL = time.Hour
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Tools.MaxIterations == 0 {
		cfg.Tools.MaxIterations = 25
	}
	if cfg.Tools.ContainerExec.MaxOutputBytes == 0 {
		cfg.Tools.ContainerExec.MaxOutputBytes = 1 << 20
	}
	if cfg.Tools.ContainerExec.Timeout == 0 {
		cfg.Tools.ContainerExec.Timeout = 2 * time.Minute
	}
	if len(cfg.Tools.ContainerExec.DenyList) == 0 {
		cfg.Tools.ContainerExec.DenyList = DefaultContainerExecDenyList()
	}
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = "info"
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = "json"
	}
	if cfg.TaskOrchestrator.PollInterval == 0 {
		cfg.TaskOrchestrator.PollInterval = time.Second
	}
	if cfg.TaskOrchestrator.TaskTimeout == 0 {
		cfg.TaskOrchestrator.TaskTimeout = 30 * time.Minute
	}
	if cfg.TaskOrchestrator.MaxConcurrency == 0 {
		cfg.TaskOrchestrator.MaxConcurrency = 8
	}
	if cfg.Broker.PollInterval == 0 {
		cfg.Broker.PollInterval = time.Second
	}
	if cfg.Broker.LeaseDuration == 0 {
		cfg.Broker.LeaseDuration = time.Minute
	}
	if cfg.Broker.ReaperInterval == 0 {
		cfg.Broker.ReaperInterval = 30 * time.Second
	}
	if cfg.Broker.MaxConcurrency == 0 {
		cfg.Broker.MaxConcurrency = 8
	}
	if cfg.SSEGateway.PollInterval == 0 {
		cfg.SSEGateway.PollInterval = 500 * time.Millisecond
	}
	if cfg.SSEGateway.BatchSize == 0 {
		cfg.SSEGateway.BatchSize = 100
	}
	if cfg.SSEGateway.IdleTimeout == 0 {
		cfg.SSEGateway.IdleTimeout = 300 * time.Second
	}
	if cfg.TTL.EventTTL == 0 {
		cfg.TTL.EventTTL = 7 * 24 * time.Hour
	}
	if cfg.TTL.MessageTTL == 0 {
		cfg.TTL.MessageTTL = 30 * 24 * time.Hour
	}
	if cfg.TTL.SweepInterval == 0 {
		cfg.TTL.SweepInterval = time.Hour
	}
}
