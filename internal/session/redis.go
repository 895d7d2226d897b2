package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions as a single hash per session with fields
// summary, messages (JSON), artifacts (JSON), and updated_at — the exact
// shape thread_memory.py writes via HSET with a TTL refreshed on every
// write.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	compactor *Compactor
}

// NewRedisStore builds a RedisStore against the given connection URL.
func NewRedisStore(url, namespace string, ttl time.Duration, compactor *Compactor) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = "agentmesh:thread"
	}
	return &RedisStore{
		client:    redis.NewClient(opt),
		namespace: namespace,
		ttl:       ttl,
		compactor: compactor,
	}, nil
}

func (r *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", r.namespace, sessionID)
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (Session, error) {
	return r.load(ctx, sessionID)
}

func (r *RedisStore) load(ctx context.Context, sessionID string) (Session, error) {
	vals, err := r.client.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	s := Session{ID: sessionID}
	if len(vals) == 0 {
		s.UpdatedAt = time.Now()
		return s, nil
	}
	s.Summary = vals["summary"]
	if raw, ok := vals["messages"]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &s.Messages)
	}
	if raw, ok := vals["artifacts"]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &s.Artifacts)
	}
	if raw, ok := vals["updated_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			s.UpdatedAt = t
		}
	}
	return s, nil
}

func (r *RedisStore) save(ctx context.Context, s Session) error {
	messagesJSON, err := json.Marshal(s.Messages)
	if err != nil {
		return err
	}
	artifactsJSON, err := json.Marshal(s.Artifacts)
	if err != nil {
		return err
	}

	key := r.key(s.ID)
	if err := r.client.HSet(ctx, key, map[string]any{
		"summary":    s.Summary,
		"messages":   string(messagesJSON),
		"artifacts":  string(artifactsJSON),
		"updated_at": s.UpdatedAt.Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if r.ttl > 0 {
		r.client.Expire(ctx, key, r.ttl)
	}
	return nil
}

func (r *RedisStore) AppendTurn(ctx context.Context, sessionID string, userMsg, assistantMsg Message) error {
	s, err := r.load(ctx, sessionID)
	if err != nil {
		return err
	}
	now := time.Now()
	if userMsg.Timestamp.IsZero() {
		userMsg.Timestamp = now
	}
	if assistantMsg.Timestamp.IsZero() {
		assistantMsg.Timestamp = now
	}
	s.Messages = append(s.Messages, userMsg, assistantMsg)
	s.UpdatedAt = now

	if r.compactor != nil {
		s.Summary, s.Messages = r.compactor.CompactIfNeeded(s.Summary, s.Messages)
	}
	return r.save(ctx, s)
}

func (r *RedisStore) AppendArtifact(ctx context.Context, sessionID string, artifact Artifact) error {
	s, err := r.load(ctx, sessionID)
	if err != nil {
		return err
	}
	artifact.SessionID = sessionID
	if artifact.Timestamp.IsZero() {
		artifact.Timestamp = time.Now()
	}
	s.Artifacts = append(s.Artifacts, artifact)
	s.UpdatedAt = artifact.Timestamp
	return r.save(ctx, s)
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
