package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/fieldnotes-dev/agentmesh/internal/config"
	"github.com/fieldnotes-dev/agentmesh/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildRootCmdIncludesServeSubcommand(t *testing.T) {
	cmd := buildRootCmd(testLogger())
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["serve"] {
		t.Fatalf("expected subcommand %q to be registered", "serve")
	}
}

func TestBuildSummarizerReturnsNilWithoutAPIKey(t *testing.T) {
	s := buildSummarizer(config.Supervisor{})
	if s != nil {
		t.Errorf("buildSummarizer() = %v, want nil when no OpenAI API key is configured", s)
	}
}

func TestBuildSummarizerReturnsAdapterWithAPIKey(t *testing.T) {
	s := buildSummarizer(config.Supervisor{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"})
	if s == nil {
		t.Fatalf("buildSummarizer() = nil, want a configured adapter")
	}
}

func TestSessionSummarizerAdapterFailsWithoutConfiguredInnerSummarizer(t *testing.T) {
	a := sessionSummarizerAdapter{inner: nil}
	_, err := a.Summarize("prior summary", []session.Message{{Role: "user", Content: "hello"}})
	if err == nil {
		t.Fatalf("expected an error when the inner summarizer is not configured")
	}
}
