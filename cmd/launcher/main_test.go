package main

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildRootCmdIncludesRunSubcommand(t *testing.T) {
	cmd := buildRootCmd(testLogger())
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["run"] {
		t.Fatalf("expected subcommand %q to be registered", "run")
	}
}

func TestBuildRunCmdDefaultsServicesFileToEmpty(t *testing.T) {
	cmd := buildRunCmd(testLogger())
	flag := cmd.Flags().Lookup("services-file")
	if flag == nil {
		t.Fatalf("expected a services-file flag")
	}
	if flag.DefValue != "" {
		t.Errorf("services-file default = %q, want empty", flag.DefValue)
	}
}

func TestBuildRunCmdRegistersToolserverAndSupervisorBinFlags(t *testing.T) {
	cmd := buildRunCmd(testLogger())
	for _, name := range []string{"toolserver-bin", "supervisor-bin", "services-file", "pidfile"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q to be registered", name)
		}
	}
}

func TestBuildRunCmdPidfileDefaultsToLauncherJSON(t *testing.T) {
	cmd := buildRunCmd(testLogger())
	flag := cmd.Flags().Lookup("pidfile")
	if flag == nil {
		t.Fatalf("expected a pidfile flag")
	}
	if flag.DefValue != defaultPidfile {
		t.Errorf("pidfile default = %q, want %q", flag.DefValue, defaultPidfile)
	}
}

func TestBuildRootCmdIncludesStopSubcommand(t *testing.T) {
	cmd := buildRootCmd(testLogger())
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["stop"] {
		t.Fatalf("expected subcommand %q to be registered", "stop")
	}
}

func TestBuildStopCmdRegistersPidfileFlag(t *testing.T) {
	cmd := buildStopCmd(testLogger())
	flag := cmd.Flags().Lookup("pidfile")
	if flag == nil {
		t.Fatalf("expected a pidfile flag")
	}
	if flag.DefValue != defaultPidfile {
		t.Errorf("pidfile default = %q, want %q", flag.DefValue, defaultPidfile)
	}
}

func TestLookPathOrFallsBackWhenBinaryNotFound(t *testing.T) {
	got := lookPathOr("definitely-not-a-real-binary-xyz", "./fallback-path")
	if got != "./fallback-path" {
		t.Errorf("lookPathOr() = %q, want fallback path", got)
	}
}

func TestLookPathOrFindsRealBinary(t *testing.T) {
	got := lookPathOr("sh", "./fallback-path")
	if got == "./fallback-path" {
		t.Errorf("lookPathOr() = %q, want a resolved path to sh, not the fallback", got)
	}
}
