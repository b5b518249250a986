// Package ssegateway implements the SSE Gateway (C9): the HTTP control
// surface for session lifecycle, the two streaming endpoints, and the
// stop control endpoint. It persists nothing the Store doesn't already
// own — its only state is the per-connection polling watermark.
package ssegateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentexec/core/internal/auth"
	"github.com/agentexec/core/internal/config"
	"github.com/agentexec/core/internal/observability"
	"github.com/agentexec/core/internal/store"
)

// TaskEnqueuer is the Broker's (C10) enqueue surface, as seen by the
// Gateway: persist a user message synchronously, then hand the run off
// to a worker pool that never blocks the HTTP request. The Gateway
// never imports the Broker's store/worker machinery directly — this
// keeps the two processes' dependency graphs (§5's "three
// independently scalable processes") separable at compile time.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, sessionID string) error
}

// Server is the SSE Gateway server.
type Server struct {
	config  *config.Config
	stores  store.StoreSet
	tasks   TaskEnqueuer
	auth    *auth.Service
	metrics *observability.Metrics
	logger  *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener
}

// NewServer constructs the Gateway from its dependencies. cfg, stores
// and logger are required; metrics may be nil in tests.
func NewServer(cfg *config.Config, stores store.StoreSet, tasks TaskEnqueuer, authService *auth.Service, metrics *observability.Metrics, logger *slog.Logger) *Server {
	return &Server{
		config:  cfg,
		stores:  stores,
		tasks:   tasks,
		auth:    authService,
		metrics: metrics,
		logger:  logger,
	}
}

// Start binds the listener and begins serving in a background
// goroutine. It returns once the listener is established.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.HTTPPort)

	// api carries the authenticated control surface only; /healthz and
	// /metrics stay outside auth.Middleware since orchestration probes
	// and scrapers never carry a bearer token.
	api := http.NewServeMux()
	s.mountRoutes(api)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.HandleFunc("/healthz", s.handleHealthz)
	root.Handle("/", auth.Middleware(s.auth, s.logger)(api))

	server := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("http server error", "error", err)
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("starting sse gateway", "addr", addr)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx := ctx
	var cancel context.CancelFunc
	if shutdownCtx == nil {
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	err := s.httpServer.Shutdown(shutdownCtx)
	s.httpServer = nil
	s.httpListener = nil
	return err
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
