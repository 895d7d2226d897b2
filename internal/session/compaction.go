package session

import (
	"fmt"
	"strings"
)

// Summarizer optionally reformats/condenses older messages with an LLM.
// When nil, or when it errors, CompactIfNeeded falls back to the local
// deterministic compactor, mirroring thread_memory.py's summarizer-with-
// fallback pattern.
type Summarizer interface {
	Summarize(priorSummary string, older []Message) (string, error)
}

// CompactionConfig controls when and how a session's history is folded
// into its rolling summary, ported field-for-field from the env vars in
// thread_memory.py (REDIS_THREAD_TEXT_LIMIT, REDIS_THREAD_KEEP_MESSAGES,
// REDIS_SUMMARY_MAX_CHARS).
type CompactionConfig struct {
	TextLimit      int // total message chars that triggers compaction
	KeepMessages   int // most recent messages kept verbatim
	SummaryMaxChars int // summary is trimmed to this length, from the tail
}

// DefaultCompactionConfig matches thread_memory.py's defaults.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		TextLimit:       20000,
		KeepMessages:    8,
		SummaryMaxChars: 8000,
	}
}

// Compactor folds old messages into a rolling text summary once a session
// grows past its configured budget.
type Compactor struct {
	cfg        CompactionConfig
	summarizer Summarizer
}

// NewCompactor builds a Compactor. summarizer may be nil.
func NewCompactor(cfg CompactionConfig, summarizer Summarizer) *Compactor {
	return &Compactor{cfg: cfg, summarizer: summarizer}
}

// CompactIfNeeded triggers when the total character count of messages
// exceeds TextLimit OR there are more than KeepMessages messages present —
// the same "OR" trigger thread_memory.py uses. It keeps the most recent
// KeepMessages verbatim and folds everything older into the summary.
func (c *Compactor) CompactIfNeeded(summary string, messages []Message) (string, []Message) {
	if !c.needsCompaction(messages) {
		return summary, messages
	}

	keep := c.cfg.KeepMessages
	if keep < 0 {
		keep = 0
	}
	if keep >= len(messages) {
		return summary, messages
	}

	older := messages[:len(messages)-keep]
	recent := messages[len(messages)-keep:]

	newSummary := summary
	if c.summarizer != nil {
		if s, err := c.summarizer.Summarize(summary, older); err == nil {
			newSummary = s
		} else {
			newSummary = localSummary(summary, older)
		}
	} else {
		newSummary = localSummary(summary, older)
	}

	if max := c.cfg.SummaryMaxChars; max > 0 && len(newSummary) > max {
		newSummary = newSummary[len(newSummary)-max:]
	}

	return newSummary, append([]Message{}, recent...)
}

func (c *Compactor) needsCompaction(messages []Message) bool {
	if c.cfg.KeepMessages > 0 && len(messages) > c.cfg.KeepMessages {
		return true
	}
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return c.cfg.TextLimit > 0 && total > c.cfg.TextLimit
}

// localSummary is the deterministic fallback: prepend the existing
// summary, then one line per folded message, role-tagged and truncated.
func localSummary(existing string, older []Message) string {
	var b strings.Builder
	if existing != "" {
		b.WriteString(existing)
		b.WriteString("\n")
	}
	b.WriteString("Compressed thread summary:\n")
	for _, m := range older {
		content := m.Content
		if len(content) > 180 {
			content = content[:180] + "..."
		}
		b.WriteString(fmt.Sprintf("- %s: %s\n", capitalize(m.Role), content))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
