package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment        string
	HTTPAddr           string
	DataDir            string
	DBPath             string
	DefaultConcurrency int
	APIToken           string
	CORSAllowedOrigins string

	FixturePath  string
	WatchFixture bool
	RunbookDir   string

	TranscriptsEnabled bool
	TranscriptRoot     string

	HeartbeatEnabled     bool
	HeartbeatIntervalSec int
	HeartbeatStaleSec    int

	LLMProvider   string // openai | anthropic | gemini | none
	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeoutSec int
	LLMMaxWords   int

	ChatEnabled            bool
	ChatRateLimitPerWindow int
	ChatRateLimitWindowSec int
	ChatTrustedClientsCSV  string

	GitHubToken        string
	GitHubAPI          string
	GitHubRepoOwner    string
	GitHubRepoName     string
	GitHubRunLimit     int
	GitHubSyncEnabled  bool
	GitHubSyncSchedule string

	EscalationWebhookURL      string
	EscalationTimeoutSec      int
	EscalationMaxAttempts     int
	EscalationRetryBackoffSec int

	MCPEnabled bool

	APIURL        string
	TUIRefreshSec int
}

func FromEnv() Config {
	dataDir := stringOrDefault("DEVOPS_ASSISTANT_DATA_DIR", "/data")
	dbPath := stringOrDefault("DEVOPS_ASSISTANT_DB_PATH", filepath.Join(dataDir, "devops-assistant", "audit.sqlite"))

	return Config{
		Environment:        stringOrDefault("DEVOPS_ASSISTANT_ENV", "development"),
		HTTPAddr:           stringOrDefault("DEVOPS_ASSISTANT_HTTP_ADDR", ":8000"),
		DataDir:            dataDir,
		DBPath:             dbPath,
		DefaultConcurrency: intOrDefault("DEVOPS_ASSISTANT_DEFAULT_CONCURRENCY", 2),
		APIToken:           stringOrDefault("DEVOPS_ASSISTANT_API_TOKEN", "demo-secure-token-123"),
		CORSAllowedOrigins: stringOrDefault("DEVOPS_ASSISTANT_CORS_ALLOWED_ORIGINS", "*"),

		FixturePath:  strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_FIXTURE_PATH")),
		WatchFixture: boolOrDefault("DEVOPS_ASSISTANT_WATCH_FIXTURE", true),
		RunbookDir:   strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_RUNBOOK_DIR")),

		TranscriptsEnabled: boolOrDefault("DEVOPS_ASSISTANT_TRANSCRIPTS_ENABLED", true),
		TranscriptRoot:     stringOrDefault("DEVOPS_ASSISTANT_TRANSCRIPT_DIR", filepath.Join(dataDir, "devops-assistant", "transcripts")),

		HeartbeatEnabled:     boolOrDefault("DEVOPS_ASSISTANT_HEARTBEAT_ENABLED", true),
		HeartbeatIntervalSec: intOrDefault("DEVOPS_ASSISTANT_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:    intOrDefault("DEVOPS_ASSISTANT_HEARTBEAT_STALE_SECONDS", 120),

		LLMProvider:   strings.ToLower(stringOrDefault("DEVOPS_ASSISTANT_LLM_PROVIDER", "none")),
		LLMBaseURL:    strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_LLM_BASE_URL")),
		LLMAPIKey:     strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_LLM_API_KEY")),
		LLMModel:      strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_LLM_MODEL")),
		LLMTimeoutSec: intOrDefault("DEVOPS_ASSISTANT_LLM_TIMEOUT_SECONDS", 30),
		LLMMaxWords:   intOrDefault("DEVOPS_ASSISTANT_LLM_MAX_WORDS", 150),

		ChatEnabled:            boolOrDefault("DEVOPS_ASSISTANT_CHAT_ENABLED", true),
		ChatRateLimitPerWindow: intOrDefault("DEVOPS_ASSISTANT_CHAT_RATE_LIMIT_PER_WINDOW", 20),
		ChatRateLimitWindowSec: intOrDefault("DEVOPS_ASSISTANT_CHAT_RATE_LIMIT_WINDOW_SECONDS", 60),
		ChatTrustedClientsCSV:  strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_CHAT_TRUSTED_CLIENTS")),

		GitHubToken:        strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_GITHUB_TOKEN")),
		GitHubAPI:          stringOrDefault("DEVOPS_ASSISTANT_GITHUB_API_BASE", "https://api.github.com"),
		GitHubRepoOwner:    strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_GITHUB_REPO_OWNER")),
		GitHubRepoName:     strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_GITHUB_REPO_NAME")),
		GitHubRunLimit:     intOrDefault("DEVOPS_ASSISTANT_GITHUB_RUN_LIMIT", 10),
		GitHubSyncEnabled:  boolOrDefault("DEVOPS_ASSISTANT_GITHUB_SYNC_ENABLED", false),
		GitHubSyncSchedule: stringOrDefault("DEVOPS_ASSISTANT_GITHUB_SYNC_SCHEDULE", "@every 1m"),

		EscalationWebhookURL:      strings.TrimSpace(os.Getenv("DEVOPS_ASSISTANT_ESCALATION_WEBHOOK_URL")),
		EscalationTimeoutSec:      intOrDefault("DEVOPS_ASSISTANT_ESCALATION_TIMEOUT_SECONDS", 15),
		EscalationMaxAttempts:     intOrDefault("DEVOPS_ASSISTANT_ESCALATION_MAX_ATTEMPTS", 3),
		EscalationRetryBackoffSec: intOrDefault("DEVOPS_ASSISTANT_ESCALATION_RETRY_BACKOFF_SECONDS", 5),

		MCPEnabled: boolOrDefault("DEVOPS_ASSISTANT_MCP_ENABLED", true),

		APIURL:        stringOrDefault("DEVOPS_ASSISTANT_API_URL", "http://localhost:8000"),
		TUIRefreshSec: intOrDefault("DEVOPS_ASSISTANT_TUI_REFRESH_SECONDS", 30),
	}
}

// GitHubRepoConfigured reports whether a default repository is set for syncing.
func (c Config) GitHubRepoConfigured() bool {
	return strings.TrimSpace(c.GitHubRepoOwner) != "" && strings.TrimSpace(c.GitHubRepoName) != ""
}

// TrustedChatClients returns the lower-cased client keys that bypass the
// chat rate limit, or nil when none are configured.
func (c Config) TrustedChatClients() map[string]struct{} {
	keys := splitList(c.ChatTrustedClientsCSV)
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[strings.ToLower(key)] = struct{}{}
	}
	return set
}

// AllowedOrigins returns the CORS origins; a lone "*" allows any.
func (c Config) AllowedOrigins() []string {
	origins := splitList(c.CORSAllowedOrigins)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
