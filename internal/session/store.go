package session

import "context"

// Store is the persistence interface both the orchestrator and the
// supervisor HTTP handlers depend on; never the concrete backend.
type Store interface {
	// Get loads a session, creating an empty one if it doesn't exist yet.
	Get(ctx context.Context, sessionID string) (Session, error)
	// AppendTurn records one exchange, running compaction if needed.
	AppendTurn(ctx context.Context, sessionID string, userMsg, assistantMsg Message) error
	// AppendArtifact appends one artifact to the session.
	AppendArtifact(ctx context.Context, sessionID string, artifact Artifact) error
	// Delete removes a session entirely.
	Delete(ctx context.Context, sessionID string) error
}
