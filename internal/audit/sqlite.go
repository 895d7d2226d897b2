package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteSink is an optional, queryable audit log destination: a single
// append-only table, used alongside (never instead of) the structured
// slog output. This is control-plane audit storage, not the specialists'
// own business database.
type sqliteSink struct {
	mu sync.Mutex
	db *sql.DB
}

func newSQLiteSink(path string) (*sqliteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	level TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	session_id TEXT,
	tool_name TEXT,
	tool_call_id TEXT,
	action TEXT,
	details TEXT,
	duration_ms INTEGER,
	error TEXT
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit_events table: %w", err)
	}
	return &sqliteSink{db: db}, nil
}

func (s *sqliteSink) Insert(e *Event) {
	details, _ := json.Marshal(e.Details)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(
		`INSERT OR REPLACE INTO audit_events
		 (id, type, level, timestamp, session_id, tool_name, tool_call_id, action, details, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), string(e.Level), e.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"),
		e.SessionID, e.ToolName, e.ToolCallID, e.Action, string(details), e.Duration.Milliseconds(), e.Error,
	)
}

func (s *sqliteSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Close()
}
