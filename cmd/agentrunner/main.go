// Package main is the entry point that runs inside one session's agent
// container: it drives exactly one run of the Graph Orchestrator (C6)
// through the Streaming Runtime (C7) and exits once a finish event is
// durably recorded, per spec.md §6's container environment contract.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"google.golang.org/genai"

	"github.com/agentexec/core/internal/agentctx"
	"github.com/agentexec/core/internal/compaction"
	appconfig "github.com/agentexec/core/internal/config"
	"github.com/agentexec/core/internal/graph"
	"github.com/agentexec/core/internal/llmagent"
	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/internal/streaming"
	"github.com/agentexec/core/internal/tools"
	"github.com/agentexec/core/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		slog.Error("agent run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	sessionID := os.Getenv("SESSION_ID")
	workspaceID := os.Getenv("WORKSPACE_ID")
	framework := os.Getenv("FRAMEWORK")
	runMode := os.Getenv("RUN_MODE")
	if sessionID == "" {
		return fmt.Errorf("SESSION_ID is required")
	}

	configPath := os.Getenv("AGENTEXEC_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stores, closeStores, err := openStores(ctx, runMode)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer closeStores()

	workspacePath := "/workspace"
	agentctx.EnableFallback(&agentctx.Context{
		SessionID:     sessionID,
		WorkspaceID:   workspaceID,
		WorkspacePath: workspacePath,
		Events:        stores.Events,
		Messages:      stores.Messages,
	})
	defer agentctx.DisableFallback()

	provider, model, err := newProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	registry := buildToolRegistry(sessionID, workspacePath, framework, cfg)
	router := graph.NewRouter()

	emitter := streaming.NewEmitter(sessionID, stores.Events)

	compactor := &compaction.Compactor{
		Trigger: compaction.TriggerConfig{
			TriggerMessageCount: 40,
			RetentionMessages:   12,
		},
		Strategy: compaction.SlidingWindowStrategy{},
	}

	agents := make(map[graph.Node]llmagent.Agent, len(nodeRoles))
	for node, role := range nodeRoles {
		node, role := node, role
		agents[node] = llmagent.Agent{
			Name:           string(role),
			SystemPrompt:   llmagent.RolePrompts[role],
			Model:          model,
			Provider:       provider,
			Tools:          registry,
			Middleware:     []llmagent.Middleware{compactor},
			Emit:           emitFunc(ctx, emitter, string(role), node),
			EmitTool:       toolEventFunc(ctx, emitter, string(role), node),
			AllowedActions: router.AllowedActions(node),
		}
	}

	graphAgents := make(map[graph.Node]graph.Agent, len(agents))
	for node, agent := range agents {
		agent := agent
		graphAgents[node] = &agent
	}
	orchestrator := graph.NewOrchestrator(graphAgents)

	runtime := streaming.NewRuntime(streaming.Config{
		SessionID:    sessionID,
		WorkspaceID:  workspaceID,
		Framework:    framework,
		Messages:     stores.Messages,
		Stops:        stores.Stops,
		Emitter:      emitter,
		Orchestrator: orchestrator,
		StartNode:    graph.NodeBoss,
	})

	return runtime.Run(ctx)
}

// nodeRoles binds each fixed graph node to its llmagent role; the two
// enums are deliberately kept distinct (graph.Node names a position in
// the routing table, llmagent.Role names a prompt/persona) so a future
// graph could reuse a role at more than one node.
var nodeRoles = map[graph.Node]llmagent.Role{
	graph.NodeBoss:      llmagent.RoleBoss,
	graph.NodePM:        llmagent.RolePM,
	graph.NodeArchitect: llmagent.RoleArchitect,
	graph.NodePJM:       llmagent.RolePJM,
	graph.NodeEngineer:  llmagent.RoleEngineer,
	graph.NodeQA:        llmagent.RoleQA,
}

func openStores(ctx context.Context, runMode string) (store.StoreSet, func(), error) {
	if runMode != "database" {
		ms := store.NewMemoryStore()
		return ms.Set(), func() {}, nil
	}

	dsn := os.Getenv("DATABASE_DSN")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return store.StoreSet{}, nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		db.Close()
		return store.StoreSet{}, nil, fmt.Errorf("ping database: %w", err)
	}
	return store.NewCockroachStoreDB(db).Set(), func() { db.Close() }, nil
}

func buildToolRegistry(sessionID, workspacePath, framework string, cfg *appconfig.Config) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool(workspacePath))
	registry.Register(tools.NewWriteFileTool(workspacePath))
	registry.Register(tools.NewListFilesTool(workspacePath))
	registry.Register(tools.NewDeleteFileTool(workspacePath))
	registry.Register(tools.NewMkdirTool(workspacePath))
	registry.Register(tools.NewGrepTool(workspacePath))

	devServer := tools.NewDevServerManager(workspacePath, framework)
	registry.Register(tools.NewDevServerStatusTool(sessionID, devServer))

	registry.Register(tools.NewExecTool(sessionID, localExecutor{}, cfg.Tools.ContainerExec.Timeout))
	return registry
}

// localExecutor satisfies tools.ContainerExecutor by running commands
// directly: the agent runner already executes inside the session's
// isolated container, so "inside the container" here just means the
// local process namespace.
type localExecutor struct{}

func (localExecutor) Exec(ctx context.Context, sessionID, command string, timeout time.Duration) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return string(out), exitCode, err
}

func emitFunc(ctx context.Context, emitter *streaming.Emitter, agentName string, node graph.Node) llmagent.EmitFunc {
	return func(chunk llmagent.Chunk) {
		if chunk.Err != nil || chunk.Done {
			return
		}
		_, _ = emitter.Emit(ctx, models.EventLLMStream, agentName, []string{string(node)}, chunk.MessageID, models.EventData{
			Delta:         chunk.Delta,
			ContentType:   chunk.ContentType,
			ToolCallIndex: chunk.ToolCallIndex,
			ToolCallName:  chunk.ToolCallName,
			ToolCallID:    chunk.ToolCallID,
		})
	}
}

// toolEventFunc translates one agent's tool-invocation boundaries into
// tool_start/tool_end events.
func toolEventFunc(ctx context.Context, emitter *streaming.Emitter, agentName string, node graph.Node) llmagent.ToolEventFunc {
	return func(phase llmagent.ToolPhase, toolCallID, toolName string, args []byte, result *tools.Result, err error) {
		data := models.EventData{
			ToolName:   toolName,
			ToolCallID: toolCallID,
			Args:       args,
		}
		eventType := models.EventToolStart
		if phase == llmagent.ToolPhaseEnd {
			eventType = models.EventToolEnd
			if err != nil {
				data.Error = err.Error()
			} else if result != nil {
				data.Result = result.Content
				if result.IsError {
					data.Error = result.Content
				}
			}
		}
		_, _ = emitter.Emit(ctx, eventType, agentName, []string{string(node)}, "", data)
	}
}

func newProvider(ctx context.Context, cfg *appconfig.Config) (llmagent.Provider, string, error) {
	name := cfg.LLM.DefaultProvider
	providerCfg := cfg.LLM.Providers[name]

	switch name {
	case "anthropic":
		return llmagent.NewAnthropicProvider(providerCfg.APIKey), providerCfg.DefaultModel, nil
	case "openai":
		return llmagent.NewOpenAIProvider(providerCfg.APIKey), providerCfg.DefaultModel, nil
	case "bedrock":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.LLM.Bedrock.Region))
		if err != nil {
			return nil, "", fmt.Errorf("load aws config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return llmagent.NewBedrockProvider(client), providerCfg.DefaultModel, nil
	case "genai":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: providerCfg.APIKey, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return nil, "", fmt.Errorf("new genai client: %w", err)
		}
		return llmagent.NewGenAIProvider(client), providerCfg.DefaultModel, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", name)
	}
}
