// Package main is the entry point for the launcher process: it starts the
// supervisor and every specialist tool-server as child processes,
// mirroring mcp_launcher.py's MCPServerManager, and supervises them with
// internal/launcher's health-poll-then-monitor loop instead of a bare
// process-group wait.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-dev/agentmesh/internal/config"
	"github.com/fieldnotes-dev/agentmesh/internal/launcher"
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
		Use:          "agentmesh-launcher",
		Short:        "Start and supervise the supervisor plus every specialist tool-server",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(logger))
	root.AddCommand(buildStopCmd(logger))
	return root
}

const defaultPidfile = "launcher.json"

func buildRunCmd(logger *slog.Logger) *cobra.Command {
	var toolserverBin, supervisorBin, servicesFile, pidfile string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start all child processes and supervise them until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLauncher(cmd.Context(), logger, toolserverBin, supervisorBin, servicesFile, pidfile)
		},
	}
	runCmd.Flags().StringVar(&toolserverBin, "toolserver-bin", lookPathOr("agentmesh-toolserver", "./agentmesh-toolserver"), "path to the toolserver binary")
	runCmd.Flags().StringVar(&supervisorBin, "supervisor-bin", lookPathOr("agentmesh-supervisor", "./agentmesh-supervisor"), "path to the supervisor binary")
	runCmd.Flags().StringVar(&servicesFile, "services-file", "", "optional YAML service discovery file (see internal/config.LoadServices)")
	runCmd.Flags().StringVar(&pidfile, "pidfile", defaultPidfile, "path to write running child pids/ports to, for a later `stop`")
	return runCmd
}

// buildStopCmd finds a launcher started elsewhere by its pidfile and sends
// SIGTERM to every child it recorded, for operators who run the launcher
// detached (a systemd unit, nohup) and need a separate process to stop it.
func buildStopCmd(logger *slog.Logger) *cobra.Command {
	var pidfile string
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running launcher's children using its pidfile",
		RunE: func(cmd *cobra.Command, args []string) error {
			stopped, err := launcher.StopFromPidfile(pidfile)
			for _, name := range stopped {
				logger.Info("launcher_stop_signalled", "name", name)
			}
			return err
		},
	}
	stopCmd.Flags().StringVar(&pidfile, "pidfile", defaultPidfile, "path to the pidfile written by `run`")
	return stopCmd
}

func lookPathOr(name, fallback string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return fallback
}

const startStagger = 250 * time.Millisecond

func runLauncher(ctx context.Context, logger *slog.Logger, toolserverBin, supervisorBin, servicesFile, pidfile string) error {
	services, err := config.LoadServices(servicesFile)
	if err != nil {
		return fmt.Errorf("load services: %w", err)
	}

	var specs []launcher.ChildSpec
	for i, svc := range services.Services {
		specs = append(specs, launcher.ChildSpec{
			Name:       svc.Name,
			Command:    toolserverBin,
			Args:       []string{"serve", svc.Name},
			HealthURL:  fmt.Sprintf("%s/health", svc.URL),
			StartDelay: time.Duration(i) * startStagger,
			Port:       svc.Port,
		})
	}
	specs = append(specs, launcher.ChildSpec{
		Name:       "supervisor",
		Command:    supervisorBin,
		Args:       []string{"serve"},
		HealthURL:  "http://localhost:8000/health",
		StartDelay: time.Duration(len(services.Services)) * startStagger,
		Port:       8000,
	})

	l := launcher.New(specs, logger)
	if pidfile != "" {
		l.SetPidfile(pidfile)
	}
	return l.RunWithSignals(ctx)
}
