package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/responder/pkg/agent"
	"github.com/codeready-toolchain/responder/pkg/api"
	"github.com/codeready-toolchain/responder/pkg/cleanup"
	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/database"
	"github.com/codeready-toolchain/responder/pkg/github"
	"github.com/codeready-toolchain/responder/pkg/logs"
	"github.com/codeready-toolchain/responder/pkg/masking"
	"github.com/codeready-toolchain/responder/pkg/queue"
	"github.com/codeready-toolchain/responder/pkg/services"
	"github.com/codeready-toolchain/responder/pkg/slack"
	"github.com/codeready-toolchain/responder/pkg/store"
)

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func newServeCmd() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and incident workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(ctx, configDir)
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	return cmd
}

func serve(ctx context.Context, configDir string) error {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()
	slog.Info("Starting responder", "pod_id", podID, "config_dir", configDir)

	// 1. Configuration
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return err
	}

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	incidentStore := store.NewIncidentStore(dbClient.Pool())
	serviceStore := store.NewServiceStore(dbClient.Pool())
	jobStore := queue.NewJobStore(dbClient.Pool())

	// 3. One-time startup orphan cleanup
	if err := queue.CleanupStartupOrphans(ctx, jobStore, podID); err != nil {
		slog.Error("Failed to cleanup startup orphans", "error", err)
	}

	// 4. Collaborators
	registry := services.NewServiceRegistry(serviceStore, services.DefaultServiceCacheTTL)
	vcs := github.New(cfg.GitHub, cfg.Remediation.WorkspaceDir)
	notifier := slack.NewNotifier(cfg.Slack, cfg.DashboardURL)
	if notifier == nil {
		slog.Info("Slack notifications disabled")
	}
	logSources, err := buildLogSources(ctx, cfg.Logs)
	if err != nil {
		return err
	}
	logSources.SetRedactor(masking.NewService(cfg.Logs.Masking))
	diagnoser := agent.New(cfg.Agent, agent.NewInvoker(cfg.Agent, agent.ExecRunner{}))

	orchestrator := queue.NewOrchestrator(queue.Collaborators{
		Incidents: incidentStore,
		Logs:      logSources,
		Agent:     diagnoser,
		Repo:      vcs,
		Notifier:  notifier,
	}, cfg.Logs, agent.NewGate(cfg.Remediation.MinConfidence))

	// 5. Worker pool (before HTTP server)
	// The pool outlives the signal context; shutdown() stops it with a
	// bounded wait so in-flight incidents are not cancelled mid-run.
	workerPool := queue.NewWorkerPool(podID, jobStore, incidentStore, registry, cfg.Queue, orchestrator)
	if err := workerPool.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	// 6. Workspace retention
	cleanupService := cleanup.NewService(cfg.Retention, incidentStore, vcs)
	cleanupService.Start(ctx)

	// 7. HTTP server and chat listener
	ingest := services.NewIngestService(incidentStore, registry, jobStore)
	reviews := services.NewReviewService(incidentStore, registry, vcs)

	dbHealth := func(ctx context.Context) (*database.HealthStatus, error) {
		return database.Health(ctx, dbClient.Pool())
	}
	httpServer := api.NewServer(cfg, dbHealth, ingest, registry, incidentStore, reviews)
	httpServer.SetWorkerPool(workerPool)

	listener := slack.NewListener(cfg.Slack, notifier, reviews)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return listener.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown(ctx, cfg, workerPool, httpServer)
		cleanupService.Stop()
		return nil
	})

	slog.Info("Responder started successfully",
		"pod_id", podID,
		"addr", cfg.HTTP.Addr,
		"workers", cfg.Queue.WorkerCount)

	err = g.Wait()
	slog.Info("Shutdown complete")
	return err
}

// shutdown stops the workers first so in-flight incidents can finish, then
// the HTTP server.
func shutdown(ctx context.Context, cfg *config.Config, workerPool *queue.WorkerPool, httpServer *api.Server) {
	slog.Info("Shutdown signal received")
	ctx = context.WithoutCancel(ctx)

	workerCtx, workerCancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerCtx.Done():
		slog.Warn("Shutdown timeout exceeded, incomplete incidents will be orphan-recovered")
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}

func buildLogSources(ctx context.Context, cfg *config.LogsConfig) (*logs.Registry, error) {
	sources := []logs.Source{logs.NewMockSource()}
	if cfg.Datadog != nil {
		sources = append(sources, logs.NewDatadogSource(cfg.Datadog))
	}
	if cfg.CloudWatch != nil && cfg.CloudWatch.LogGroup != "" {
		cw, err := logs.NewCloudWatchSource(ctx, cfg.CloudWatch)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CloudWatch log source: %w", err)
		}
		sources = append(sources, cw)
	}
	return logs.NewRegistry(sources...), nil
}
