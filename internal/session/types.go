// Package session implements the mesh's per-conversation state: a Store
// interface with an in-memory implementation and a Redis-backed one, plus
// the Compactor that keeps long-running threads bounded. The shape is
// adapted from the teacher's sessions.MemoryStore (clone-on-read/write,
// mutex-guarded maps) but the persisted format and the compaction algorithm
// follow the HR bundle's thread_memory.py exactly: a hash per session with
// summary/messages/artifacts/updated_at fields and TTL.
package session

import "time"

// Message is one turn of conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

// Artifact is an append-only, typed fact produced by a tool plan step (a
// risk assessment, a dependency scan, a report). Artifacts never reference
// other artifacts or sessions by pointer, only by plain session id data, to
// avoid a cyclic reference through the store.
type Artifact struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// RiskScore returns the artifact's "risk_score" field as a float64, or
// (0, false) if absent/not numeric.
func (a Artifact) RiskScore() (float64, bool) {
	v, ok := a.Fields["risk_score"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// VulnerabilityCount returns the artifact's "vulnerability_count" field.
func (a Artifact) VulnerabilityCount() (int, bool) {
	v, ok := a.Fields["vulnerability_count"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Session is the full persisted state for one conversation thread.
type Session struct {
	ID        string     `json:"id"`
	Summary   string     `json:"summary"`
	Messages  []Message  `json:"messages"`
	Artifacts []Artifact `json:"artifacts"`
	UpdatedAt time.Time  `json:"updated_at"`
}
