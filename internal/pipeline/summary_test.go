package pipeline

import (
	"strings"
	"testing"
)

func TestSummarizeDefaults(t *testing.T) {
	summary := Summarize(DefaultPipelines(), 2)
	if summary.Total != 3 || summary.Success != 1 || summary.Failed != 1 || summary.Running != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Details) != 1 || summary.Details[0].Name != "Backend API" {
		t.Fatalf("unexpected failed details: %+v", summary.Details)
	}
	block := summary.ContextBlock()
	if !strings.Contains(block, "- 1 failed pipelines") {
		t.Fatalf("expected failed count in context block, got %q", block)
	}
	if !strings.Contains(block, "- Backend API: Test timeout after 300s - Database connection failed") {
		t.Fatalf("expected failed detail in context block, got %q", block)
	}
}

func TestSummarizeCapsDetails(t *testing.T) {
	items := []Pipeline{
		{ID: "a", Name: "A", Status: StatusFailed},
		{ID: "b", Name: "B", Status: StatusFailed, Error: "boom"},
		{ID: "c", Name: "C", Status: StatusFailed},
		{ID: "d", Name: "D", Status: "queued"},
	}
	summary := Summarize(items, 2)
	if summary.Failed != 3 || summary.Unknown != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if len(summary.Details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(summary.Details))
	}
	if summary.Details[0].Error != "Unknown error" {
		t.Fatalf("expected placeholder error, got %q", summary.Details[0].Error)
	}
}
