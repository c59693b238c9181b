package memorylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendCreatesMarkdownTranscript(t *testing.T) {
	root := t.TempDir()
	stamp := time.Date(2024, 1, 15, 11, 20, 0, 0, time.UTC)
	if err := Append(Entry{Root: root, ClientKey: "10.0.0.1:5432", Direction: "inbound", Text: "Should I retry?", Timestamp: stamp}); err != nil {
		t.Fatalf("append inbound: %v", err)
	}
	if err := Append(Entry{Root: root, ClientKey: "10.0.0.1:5432", Direction: "outbound", Route: "simple", ResponseType: "rule_based", Text: "I can help you retry.", Timestamp: stamp}); err != nil {
		t.Fatalf("append outbound: %v", err)
	}

	logPath := filepath.Join(root, "chats", "10.0.0.1-5432", "2024-01-15.md")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	content := string(data)
	if strings.Count(content, "# Chat Transcript") != 1 {
		t.Fatalf("expected a single header, got %s", content)
	}
	if !strings.Contains(content, "Should I retry?") || !strings.Contains(content, "- type: `rule_based`") {
		t.Fatalf("expected both entries, got %s", content)
	}
}

func TestAppendSkipsEmptyTextOrRoot(t *testing.T) {
	root := t.TempDir()
	if err := Append(Entry{Root: root, ClientKey: "cli", Text: "   "}); err != nil {
		t.Fatalf("append empty: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "chats")); !os.IsNotExist(err) {
		t.Fatalf("expected no transcript dir, got %v", err)
	}
	if err := Append(Entry{ClientKey: "cli", Text: "hello"}); err != nil {
		t.Fatalf("append without root: %v", err)
	}
}
