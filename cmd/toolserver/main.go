// Package main is the entry point for a specialist tool-server process: it
// boots exactly one bundle (recon, threatintel, riskengine, reporting, or
// github) behind the shared mcpserver runtime, selected by the "serve"
// subcommand's positional argument.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-dev/agentmesh/internal/approval"
	"github.com/fieldnotes-dev/agentmesh/internal/audit"
	"github.com/fieldnotes-dev/agentmesh/internal/cache"
	"github.com/fieldnotes-dev/agentmesh/internal/config"
	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
	"github.com/fieldnotes-dev/agentmesh/internal/specialists"
	"github.com/fieldnotes-dev/agentmesh/internal/specialists/cyber"
	ghbundle "github.com/fieldnotes-dev/agentmesh/internal/specialists/github"
	"github.com/fieldnotes-dev/agentmesh/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd(logger).Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "agentmesh-toolserver",
		Short:        "AgentMesh specialist tool-server",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(logger))
	return root
}

func buildServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:       "serve <bundle>",
		Short:     "Start one specialist bundle's HTTP tool server",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"recon", "threatintel", "riskengine", "reporting", "github"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger, args[0])
		},
	}
}

// defaultPorts mirrors config.DefaultServices' port assignments so running
// `serve <bundle>` with no other configuration just works.
var defaultPorts = map[string]int{
	"recon":       8101,
	"threatintel": 8102,
	"riskengine":  8103,
	"reporting":   8104,
	"github":      8105,
}

func serve(ctx context.Context, logger *slog.Logger, bundleName string) error {
	defaultPort, ok := defaultPorts[bundleName]
	if !ok {
		return fmt.Errorf("unknown bundle %q", bundleName)
	}

	cfg := config.LoadSpecialist(bundleName, defaultPort)
	logger = logger.With("bundle", bundleName)

	shutdownTracing := telemetry.Init("agentmesh-" + bundleName)
	defer func() { _ = shutdownTracing(context.Background()) }()

	cacheBackend, err := cache.New(cfg.CacheBackend, cfg.CacheMaxSize, cfg.RedisURL, bundleName)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	issuer := approval.NewIssuer(cfg.ApprovalSecret, cfg.ApprovalTokenTTL)

	auditLogger, err := audit.NewLogger(audit.DefaultConfig())
	if err != nil {
		return fmt.Errorf("build audit logger: %w", err)
	}

	registry := mcpserver.NewRegistry(bundleName)
	if err := registerBundle(registry, bundleName, cfg); err != nil {
		return fmt.Errorf("register %s tools: %w", bundleName, err)
	}

	dispatcher := mcpserver.NewDispatcher(registry, cacheBackend, issuer, auditLogger)
	if bundleName == "github" {
		dispatcher.Resolver = mcpserver.NewResolver(specialists.InProcessExecutor{Dispatcher: dispatcher})
	}

	server := mcpserver.NewServer("agentmesh-"+bundleName, dispatcher, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("toolserver_listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-serveCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

func registerBundle(registry *mcpserver.Registry, bundleName string, cfg config.Specialist) error {
	switch bundleName {
	case "recon":
		return cyber.RegisterRecon(registry)
	case "threatintel":
		return cyber.RegisterThreatIntel(registry)
	case "riskengine":
		return cyber.RegisterRiskEngine(registry)
	case "reporting":
		return cyber.RegisterReporting(registry)
	case "github":
		return ghbundle.Register(registry, ghbundle.NewClient(cfg.GitHubToken))
	default:
		return fmt.Errorf("unknown bundle %q", bundleName)
	}
}
