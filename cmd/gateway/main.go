// Package main is the entry point for the SSE Gateway process (C9):
// the HTTP control surface for session lifecycle and the two streaming
// endpoints. It is one of the three independently scalable processes
// spec.md §5 describes; it never imports the Broker's worker machinery,
// only the narrow TaskEnqueuer surface.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentexec/core/internal/auth"
	"github.com/agentexec/core/internal/broker"
	"github.com/agentexec/core/internal/config"
	"github.com/agentexec/core/internal/observability"
	"github.com/agentexec/core/internal/ssegateway"
	"github.com/agentexec/core/internal/store"
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
	var configPath string

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the agent execution core's SSE gateway",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to YAML configuration file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
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
	httpLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

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
	queue := broker.NewQueue(brokerStore)

	authService := auth.NewService(auth.Config{JWKSURL: cfg.Auth.JWKSURL, JWKSTTL: cfg.Auth.JWKSTTL})
	metrics := observability.NewMetrics()

	server := ssegateway.NewServer(cfg, stores, queue, authService, metrics, httpLogger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	logger.Info(ctx, "sse gateway started",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		"auth_enabled", authService.Enabled(),
	)

	<-ctx.Done()
	logger.Info(ctx, "shutdown signal received, stopping gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop gateway: %w", err)
	}

	logger.Info(context.Background(), "sse gateway stopped gracefully")
	return nil
}
