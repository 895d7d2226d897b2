// Package config loads the mesh's environment-variable-driven settings,
// mirroring the Settings classes used throughout the Python originals
// (shared/config.py in both the cybersecurity and GitHub-ops bundles): typed
// fields, sane defaults, no layered file format.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Supervisor holds the settings the supervisor process reads at startup.
type Supervisor struct {
	Port               int
	APIKey             string
	LogLevel           string
	RedisURL           string
	RedisEnabled       bool
	MaxMessageLength   int
	RateLimitPerMinute int

	ApprovalSecret    string
	ApprovalTokenTTL  time.Duration

	CacheBackend     string // "memory" | "redis"
	CacheMaxSize     int
	CacheDefaultTTL  time.Duration

	OpenAIAPIKey string
	OpenAIModel  string

	// ThreadMemory mirrors the Redis session-compaction defaults from
	// thread_memory.py.
	ThreadNamespace  string
	ThreadTTL        time.Duration
	ThreadTextLimit  int
	ThreadKeepMsgs   int
	ThreadSummaryCap int

	ServicesFile string // optional YAML discovery file, see services.go

	// OrchestratorConcurrency bounds how many independent plan steps the
	// orchestrator's Act stage runs at once.
	OrchestratorConcurrency int

	// TurnTimeout bounds a single Orchestrator.Handle call end to end
	// (route + act + summarize), per spec.md §5's per-turn budget.
	TurnTimeout time.Duration
}

// Specialist holds the settings a single specialist tool-server reads.
type Specialist struct {
	Name        string
	Port        int
	LogLevel    string
	ToolVersion string
	AuditOutput string

	// GitHubToken authenticates the github bundle's API calls; read-only
	// tools work unauthenticated against public repos with a lower rate
	// limit, but mutating calls need it.
	GitHubToken string

	ApprovalSecret   string
	ApprovalTokenTTL time.Duration

	CacheBackend string // "memory" | "redis"
	CacheMaxSize int
	RedisURL     string
}

// LoadSupervisor reads Supervisor settings from the environment.
func LoadSupervisor() Supervisor {
	approvalSecret := getenv("APPROVAL_SECRET", "")
	if approvalSecret == "" {
		approvalSecret = getenv("SUPERVISOR_API_KEY", "")
	}
	if approvalSecret == "" {
		approvalSecret = "dev-approval-secret"
	}

	return Supervisor{
		Port:               getenvInt("SUPERVISOR_PORT", 8000),
		APIKey:             getenv("SUPERVISOR_API_KEY", ""),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		RedisURL:           getenv("REDIS_URL", "redis://localhost:6379/0"),
		RedisEnabled:       getenvBool("REDIS_ENABLED", true),
		MaxMessageLength:   getenvInt("MAX_MESSAGE_LENGTH", 8000),
		RateLimitPerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 60),

		ApprovalSecret:   approvalSecret,
		ApprovalTokenTTL: getenvDuration("APPROVAL_TOKEN_TTL_SEC", 300*time.Second),

		CacheBackend:    getenv("CACHE_BACKEND", "memory"),
		CacheMaxSize:    getenvInt("CACHE_MAX_SIZE", 1000),
		CacheDefaultTTL: getenvDuration("CACHE_DEFAULT_TTL_SEC", 300*time.Second),

		OpenAIAPIKey: getenv("OPENAI_API_KEY", ""),
		OpenAIModel:  getenv("OPENAI_MODEL", "gpt-4o-mini"),

		ThreadNamespace:  getenv("REDIS_THREAD_NAMESPACE", "agentmesh:thread"),
		ThreadTTL:        getenvDuration("REDIS_THREAD_TTL_SEC", 7*24*time.Hour),
		ThreadTextLimit:  getenvInt("REDIS_THREAD_TEXT_LIMIT", 20000),
		ThreadKeepMsgs:   getenvInt("REDIS_THREAD_KEEP_MESSAGES", 8),
		ThreadSummaryCap: getenvInt("REDIS_SUMMARY_MAX_CHARS", 8000),

		ServicesFile: getenv("AGENTMESH_SERVICES_FILE", ""),

		OrchestratorConcurrency: getenvInt("ORCHESTRATOR_CONCURRENCY", 4),
		TurnTimeout:             getenvDuration("TURN_TIMEOUT_SEC", 120*time.Second),
	}
}

// LoadSpecialist reads Specialist settings for a named bundle, using
// NAME_PORT-style env vars (e.g. RECON_PORT) the way the launcher's
// MCP_SERVICES list does.
func LoadSpecialist(name string, defaultPort int) Specialist {
	prefix := strings.ToUpper(name)

	approvalSecret := getenv("APPROVAL_SECRET", "")
	if approvalSecret == "" {
		approvalSecret = "dev-approval-secret"
	}

	return Specialist{
		Name:        name,
		Port:        getenvInt(prefix+"_PORT", defaultPort),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		ToolVersion: getenv("TOOL_VERSION", "1"),
		AuditOutput: getenv("AUDIT_OUTPUT", "stdout"),
		GitHubToken: getenv("GITHUB_TOKEN", ""),

		ApprovalSecret:   approvalSecret,
		ApprovalTokenTTL: getenvDuration("APPROVAL_TOKEN_TTL_SEC", 300*time.Second),

		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		CacheMaxSize: getenvInt("CACHE_MAX_SIZE", 1000),
		RedisURL:     getenv("REDIS_URL", "redis://localhost:6379/0"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(secs) * time.Second
}
