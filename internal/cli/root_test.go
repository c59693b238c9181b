package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootIncludesExpectedSubcommands(t *testing.T) {
	root := NewRoot(nil)
	expected := [][]string{
		{"serve"},
		{"pipelines", "list"},
		{"pipelines", "show"},
		{"pipelines", "logs"},
		{"pipelines", "escalations"},
		{"action"},
		{"route"},
		{"chat", "replay"},
		{"chat", "eval"},
		{"tui"},
		{"version"},
	}
	for _, path := range expected {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("expected command %v to exist: %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected %s, got %s", path[len(path)-1], cmd.Name())
		}
	}
}

func TestRouteCommandClassifiesLocally(t *testing.T) {
	root := NewRoot(nil)
	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)
	root.SetArgs([]string{"route", "investigate", "the", "backend", "outage"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute route: %v", err)
	}
	rendered := output.String()
	if !strings.Contains(rendered, "Route: complex") || !strings.Contains(rendered, "Match: investigate") {
		t.Fatalf("unexpected route output: %q", rendered)
	}
}

func TestActionCommandRejectsUnknownAction(t *testing.T) {
	root := NewRoot(nil)
	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)
	root.SetArgs([]string{"action", "backend-api", "deploy"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "Invalid action") {
		t.Fatalf("expected invalid action error, got %v", err)
	}
}

func TestLoadConfigAppliesPersistentFlags(t *testing.T) {
	t.Setenv("DEVOPS_ASSISTANT_API_URL", "http://env.example:8000")
	t.Setenv("DEVOPS_ASSISTANT_API_TOKEN", "env-token")

	root := NewRoot(nil)
	if err := root.PersistentFlags().Parse([]string{"--api-url", "http://flag.example:9000", "--token", "flag-token"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := loadConfig(root)
	if cfg.APIURL != "http://flag.example:9000" || cfg.APIToken != "flag-token" {
		t.Fatalf("expected flag overrides, got %q %q", cfg.APIURL, cfg.APIToken)
	}

	plain := loadConfig(NewRoot(nil))
	if plain.APIURL != "http://env.example:8000" || plain.APIToken != "env-token" {
		t.Fatalf("expected env values, got %q %q", plain.APIURL, plain.APIToken)
	}
}
