package session

import (
	"context"
	"testing"
)

func TestMemoryStoreAppendTurnAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	if err := store.AppendTurn(ctx, "s1", Message{Role: "user", Content: "hi"}, Message{Role: "assistant", Content: "hello"}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
	}
}

func TestMemoryStoreAppendArtifactIndependentOfMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	art := Artifact{Type: "risk", Fields: map[string]any{"risk_score": 8.5}}
	if err := store.AppendArtifact(ctx, "s1", art); err != nil {
		t.Fatalf("AppendArtifact: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Artifacts) != 1 {
		t.Fatalf("len(Artifacts) = %d, want 1", len(got.Artifacts))
	}
	score, ok := got.Artifacts[0].RiskScore()
	if !ok || score != 8.5 {
		t.Fatalf("RiskScore() = %v, %v, want 8.5, true", score, ok)
	}
}

func TestMemoryStoreGetCreatesEmptySession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	got, err := store.Get(ctx, "unseen")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "unseen" || len(got.Messages) != 0 {
		t.Fatalf("Get() = %+v, want empty session with id", got)
	}
}

func TestMemoryStoreClonesOnRead(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	store.AppendTurn(ctx, "s1", Message{Role: "user", Content: "hi"}, Message{Role: "assistant", Content: "hello"})

	got, _ := store.Get(ctx, "s1")
	got.Messages[0].Content = "mutated"

	got2, _ := store.Get(ctx, "s1")
	if got2.Messages[0].Content == "mutated" {
		t.Fatalf("mutation of a returned session leaked into the store")
	}
}
