package config

import (
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DEVOPS_ASSISTANT_DATA_DIR", "")
	t.Setenv("DEVOPS_ASSISTANT_DB_PATH", "")
	t.Setenv("DEVOPS_ASSISTANT_HTTP_ADDR", "")
	t.Setenv("DEVOPS_ASSISTANT_API_TOKEN", "")
	t.Setenv("DEVOPS_ASSISTANT_LLM_PROVIDER", "")
	t.Setenv("DEVOPS_ASSISTANT_LLM_MAX_WORDS", "")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_API_BASE", "")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_SYNC_ENABLED", "")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_SYNC_SCHEDULE", "")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_REPO_OWNER", "")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_REPO_NAME", "")
	t.Setenv("DEVOPS_ASSISTANT_MCP_ENABLED", "")
	t.Setenv("DEVOPS_ASSISTANT_TUI_REFRESH_SECONDS", "")
	t.Setenv("DEVOPS_ASSISTANT_TRANSCRIPT_DIR", "")
	t.Setenv("DEVOPS_ASSISTANT_HEARTBEAT_STALE_SECONDS", "")
	t.Setenv("DEVOPS_ASSISTANT_ESCALATION_MAX_ATTEMPTS", "")
	t.Setenv("DEVOPS_ASSISTANT_ESCALATION_RETRY_BACKOFF_SECONDS", "")

	cfg := FromEnv()
	if cfg.EscalationMaxAttempts != 3 || cfg.EscalationRetryBackoffSec != 5 {
		t.Fatalf("unexpected escalation retry defaults %d/%d", cfg.EscalationMaxAttempts, cfg.EscalationRetryBackoffSec)
	}
	if cfg.DataDir != "/data" {
		t.Fatalf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.DBPath != filepath.Join("/data", "devops-assistant", "audit.sqlite") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.APIToken != "demo-secure-token-123" {
		t.Fatalf("unexpected api token %q", cfg.APIToken)
	}
	if cfg.LLMProvider != "none" {
		t.Fatalf("unexpected llm provider %q", cfg.LLMProvider)
	}
	if cfg.LLMMaxWords != 150 {
		t.Fatalf("unexpected llm max words %d", cfg.LLMMaxWords)
	}
	if cfg.GitHubAPI != "https://api.github.com" {
		t.Fatalf("unexpected github api %q", cfg.GitHubAPI)
	}
	if cfg.GitHubSyncEnabled {
		t.Fatal("expected github sync disabled by default")
	}
	if cfg.GitHubSyncSchedule != "@every 1m" {
		t.Fatalf("unexpected sync schedule %q", cfg.GitHubSyncSchedule)
	}
	if cfg.GitHubRepoConfigured() {
		t.Fatal("expected no default repo")
	}
	if !cfg.MCPEnabled {
		t.Fatal("expected mcp enabled by default")
	}
	if cfg.TUIRefreshSec != 30 {
		t.Fatalf("unexpected tui refresh %d", cfg.TUIRefreshSec)
	}
	if cfg.TranscriptRoot != filepath.Join("/data", "devops-assistant", "transcripts") {
		t.Fatalf("unexpected transcript root %q", cfg.TranscriptRoot)
	}
	if cfg.HeartbeatStaleSec != 120 {
		t.Fatalf("unexpected heartbeat stale seconds %d", cfg.HeartbeatStaleSec)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DEVOPS_ASSISTANT_DATA_DIR", "/tmp/devops")
	t.Setenv("DEVOPS_ASSISTANT_DB_PATH", "")
	t.Setenv("DEVOPS_ASSISTANT_LLM_PROVIDER", "Gemini")
	t.Setenv("DEVOPS_ASSISTANT_DEFAULT_CONCURRENCY", "0")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_SYNC_ENABLED", "yes")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_REPO_OWNER", "octo")
	t.Setenv("DEVOPS_ASSISTANT_GITHUB_REPO_NAME", "app")
	t.Setenv("DEVOPS_ASSISTANT_MCP_ENABLED", "off")

	cfg := FromEnv()
	if cfg.DBPath != filepath.Join("/tmp/devops", "devops-assistant", "audit.sqlite") {
		t.Fatalf("db path should follow data dir, got %q", cfg.DBPath)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected lowercased provider, got %q", cfg.LLMProvider)
	}
	if cfg.DefaultConcurrency != 2 {
		t.Fatalf("expected invalid concurrency to fall back, got %d", cfg.DefaultConcurrency)
	}
	if !cfg.GitHubSyncEnabled || !cfg.GitHubRepoConfigured() {
		t.Fatal("expected github sync configuration")
	}
	if cfg.MCPEnabled {
		t.Fatal("expected mcp disabled")
	}
}

func TestTrustedChatClients(t *testing.T) {
	set := Config{ChatTrustedClientsCSV: " tui,Dashboard , ,cli "}.TrustedChatClients()
	if len(set) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(set))
	}
	for _, key := range []string{"tui", "dashboard", "cli"} {
		if _, ok := set[key]; !ok {
			t.Fatalf("expected %s in set", key)
		}
	}
	if (Config{ChatTrustedClientsCSV: "  , "}).TrustedChatClients() != nil {
		t.Fatal("expected nil set for blank input")
	}
}

func TestAllowedOrigins(t *testing.T) {
	if got := (Config{}).AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Fatalf("expected wildcard default, got %v", got)
	}
	got := Config{CORSAllowedOrigins: "http://a.test , http://b.test,"}.AllowedOrigins()
	if len(got) != 2 || got[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", got)
	}
}
