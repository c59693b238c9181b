package memorylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseReadsMetadataAndBody(t *testing.T) {
	raw := strings.Join([]string{
		"# Chat Transcript",
		"",
		"- client: `dashboard`",
		"- date: `2026-10-19`",
		"",
		"## 2026-10-19T10:00:00Z `INBOUND`",
		"- direction: `inbound`",
		"",
		"hello",
		"",
		"## 2026-10-19T10:00:01Z `OUTBOUND`",
		"- direction: `outbound`",
		"- route: `simple`",
		"- type: `rule_based`",
		"",
		"Steps:",
		"- retry: rerun the failed stage",
		"",
	}, "\n")

	transcript, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if transcript.ClientKey != "dashboard" {
		t.Fatalf("expected client dashboard, got %q", transcript.ClientKey)
	}
	if len(transcript.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(transcript.Entries))
	}
	first := transcript.Entries[0]
	if first.Direction != DirectionInbound || first.Text != "hello" || first.Timestamp.Hour() != 10 {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	second := transcript.Entries[1]
	if second.Route != "simple" || second.ResponseType != "rule_based" {
		t.Fatalf("unexpected reply metadata: %+v", second)
	}
	if second.Text != "Steps:\n- retry: rerun the failed stage" {
		t.Fatalf("expected list item kept in body, got %q", second.Text)
	}
}

func TestParseFallsBackToHeadingDirection(t *testing.T) {
	raw := "## 2026-10-19T10:00:00Z `OUTBOUND`\n\nreply without metadata\n"
	transcript, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(transcript.Entries) != 1 || transcript.Entries[0].Direction != DirectionOutbound {
		t.Fatalf("unexpected entries: %+v", transcript.Entries)
	}
}

func TestTurnsGroupsRepliesUnderInbound(t *testing.T) {
	transcript := Transcript{Entries: []Entry{
		{Direction: DirectionOutbound, Text: "orphan"},
		{Direction: DirectionInbound, Text: "status?"},
		{Direction: DirectionOutbound, Text: "all green"},
		{Direction: DirectionOutbound, Text: "anything else?"},
		{Direction: DirectionInbound, Text: "no"},
	}}
	turns := transcript.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if len(turns[0].Replies) != 2 || turns[0].FirstReply() != "all green" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].FirstReply() != "" {
		t.Fatalf("expected unanswered second turn, got %+v", turns[1])
	}
}

func TestAppendThenReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	stamp := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for _, entry := range []Entry{
		{Root: root, ClientKey: "TUI", Direction: DirectionInbound, Text: "is backend ok?", Timestamp: stamp},
		{Root: root, ClientKey: "TUI", Direction: DirectionOutbound, Route: "simple", ResponseType: "rule_based", Text: "Backend API failed.", Timestamp: stamp},
	} {
		if err := Append(entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	files, err := Find(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "2026-10-19.md" {
		t.Fatalf("unexpected files %v", files)
	}
	transcript, err := ReadFile(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if transcript.ClientKey != "tui" || transcript.Path != files[0] {
		t.Fatalf("unexpected transcript header: %+v", transcript)
	}
	turns := transcript.Turns()
	if len(turns) != 1 || turns[0].Replies[0].ResponseType != "rule_based" {
		t.Fatalf("unexpected turns %+v", turns)
	}
}

func TestFindIgnoresFilesOutsideChats(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.md"), []byte("# notes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	files, err := Find(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no transcripts, got %v", files)
	}
	if _, err := Find(" "); err == nil {
		t.Fatal("expected error for blank path")
	}
}
