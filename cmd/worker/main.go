// Package main is the entry point for the Broker worker process (C10):
// it claims queued tasks and drives each to completion through the
// Task Orchestrator (C8). Independently scalable from the SSE Gateway
// per spec.md §5 — many worker replicas may run against the same
// database, each claiming a disjoint set of tasks via SELECT ... FOR
// UPDATE SKIP LOCKED.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentexec/core/internal/broker"
	"github.com/agentexec/core/internal/config"
	"github.com/agentexec/core/internal/observability"
	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/internal/taskorchestrator"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		configPath    string
		workspaceRoot string
	)

	cmd := &cobra.Command{
		Use:     "worker",
		Short:   "Run the agent execution core's broker worker pool",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, workspaceRoot)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&workspaceRoot, "workspace-root", "/var/lib/agentexec/workspaces", "Host directory under which each session's workspace lives")
	return cmd
}

func run(ctx context.Context, configPath, workspaceRoot string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	stores := store.NewCockroachStoreDB(db).Set()
	brokerStore := broker.NewCockroachStoreDB(db)

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("build container backend: %w", err)
	}

	pool, err := taskorchestrator.NewPool(backend, cfg.TaskOrchestrator.MaxConcurrency)
	if err != nil {
		return fmt.Errorf("new pool: %w", err)
	}
	monitor := taskorchestrator.NewMonitor(stores.Events, stores.Stops, backend).
		WithPollInterval(cfg.TaskOrchestrator.PollInterval).
		WithTaskTimeout(cfg.TaskOrchestrator.TaskTimeout)

	storeEnv := map[string]string{"DATABASE_DSN": cfg.Database.DSN, "RUN_MODE": "database"}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Broker.MaxConcurrency; i++ {
		worker := broker.NewWorker(broker.WorkerConfig{
			ID:            fmt.Sprintf("worker-%d", i),
			Store:         brokerStore,
			Sessions:      stores.Sessions,
			Pool:          pool,
			Monitor:       monitor,
			WorkspaceRoot: workspaceRoot,
			RunMode:       "database",
			StoreEnv:      storeEnv,
			PollInterval:  cfg.Broker.PollInterval,
			LeaseDuration: cfg.Broker.LeaseDuration,
			Logger:        slog.Default(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	reaper := broker.NewReaper(brokerStore, logger)
	if err := reaper.Start(fmt.Sprintf("@every %s", cfg.Broker.ReaperInterval)); err != nil {
		return fmt.Errorf("start reaper: %w", err)
	}

	logger.Info(ctx, "broker workers started",
		"count", cfg.Broker.MaxConcurrency,
		"lease_duration", cfg.Broker.LeaseDuration,
	)

	<-ctx.Done()
	logger.Info(context.Background(), "shutdown signal received, draining in-flight tasks")

	reaper.Stop()
	wg.Wait()

	logger.Info(context.Background(), "broker workers stopped gracefully")
	return nil
}

func newBackend(cfg *config.Config) (taskorchestrator.Backend, error) {
	return taskorchestrator.NewFirecrackerBackend(taskorchestrator.FirecrackerConfig{
		KernelPath: cfg.TaskOrchestrator.KernelPath,
		RootFSPath: cfg.TaskOrchestrator.RootFSPath,
	}), nil
}
