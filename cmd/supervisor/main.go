// Package main is the entry point for the supervisor process: it serves
// the chat API described in internal/supervisorapi, routing each message
// through internal/orchestrator against the specialist tool-servers it
// reaches via internal/mcpclient.
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

	"github.com/fieldnotes-dev/agentmesh/internal/config"
	"github.com/fieldnotes-dev/agentmesh/internal/mcpclient"
	"github.com/fieldnotes-dev/agentmesh/internal/orchestrator"
	"github.com/fieldnotes-dev/agentmesh/internal/ratelimit"
	"github.com/fieldnotes-dev/agentmesh/internal/session"
	"github.com/fieldnotes-dev/agentmesh/internal/summarize"
	"github.com/fieldnotes-dev/agentmesh/internal/supervisorapi"
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
		Use:          "agentmesh-supervisor",
		Short:        "AgentMesh supervisor: intent routing and tool-call orchestration",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(logger))
	return root
}

func buildServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the supervisor HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger)
		},
	}
}

func serve(ctx context.Context, logger *slog.Logger) error {
	cfg := config.LoadSupervisor()

	shutdownTracing := telemetry.Init("agentmesh-supervisor")
	defer func() { _ = shutdownTracing(context.Background()) }()

	services, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		return fmt.Errorf("load services: %w", err)
	}
	client := mcpclient.New(services, logger)

	var store session.Store
	if cfg.RedisEnabled {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.ThreadNamespace, cfg.ThreadTTL,
			session.NewCompactor(session.CompactionConfig{
				TextLimit:       cfg.ThreadTextLimit,
				KeepMessages:    cfg.ThreadKeepMsgs,
				SummaryMaxChars: cfg.ThreadSummaryCap,
			}, buildSummarizer(cfg)))
		if err != nil {
			return fmt.Errorf("build redis session store: %w", err)
		}
		store = redisStore
	} else {
		store = session.NewMemoryStore(session.NewCompactor(session.CompactionConfig{
			TextLimit:       cfg.ThreadTextLimit,
			KeepMessages:    cfg.ThreadKeepMsgs,
			SummaryMaxChars: cfg.ThreadSummaryCap,
		}, buildSummarizer(cfg)))
	}

	var orchSummarizer orchestrator.Summarizer
	if s := summarize.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel); s != nil {
		orchSummarizer = s
	}

	orch := orchestrator.New(client, store, orchSummarizer, cfg.OrchestratorConcurrency, cfg.TurnTimeout)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Enabled:           cfg.RateLimitPerMinute > 0,
	})

	handler := supervisorapi.New("agentmesh-supervisor", orch, store, limiter, logger, cfg.MaxMessageLength, cfg.APIKey)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("supervisor_listening", "addr", srv.Addr)
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

// buildSummarizer adapts the orchestrator-facing summarizer to
// session.Summarizer for the compactor, which needs plain text in/out
// rather than intent-aware reformatting.
func buildSummarizer(cfg config.Supervisor) session.Summarizer {
	s := summarize.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if s == nil {
		return nil
	}
	return sessionSummarizerAdapter{s}
}

type sessionSummarizerAdapter struct {
	inner *summarize.OpenAISummarizer
}

func (a sessionSummarizerAdapter) Summarize(priorSummary string, older []session.Message) (string, error) {
	var body string
	for _, m := range older {
		body += fmt.Sprintf("%s: %s\n", m.Role, m.Content)
	}
	return a.inner.Summarize(context.Background(), "session_compaction", priorSummary, map[string]any{"messages": body})
}
