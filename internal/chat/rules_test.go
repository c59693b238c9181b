package chat

import (
	"strings"
	"testing"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

func TestRuleBasedReply(t *testing.T) {
	pipelines := pipeline.DefaultPipelines()
	tests := []struct {
		text     string
		contains string
	}{
		{text: "Check my pipelines", contains: "I found 1 failed pipeline(s)"},
		{text: "There's an error", contains: "The **Backend API** pipeline failed at the **testing** stage."},
		{text: "Should I retry?", contains: "retry failed pipelines"},
		{text: "When do I rollback?", contains: "previous stable version"},
		{text: "Can you escalate?", contains: "notify the DevOps team"},
		{text: "Hello", contains: "DevOps AI Assistant Ready"},
		{text: "Thanks for this", contains: "What specific help do you need"},
	}
	for _, tc := range tests {
		reply := RuleBasedReply(tc.text, pipelines)
		if !strings.Contains(reply, tc.contains) {
			t.Fatalf("%q: expected reply to contain %q, got %q", tc.text, tc.contains, reply)
		}
	}
}

func TestRuleBasedReplyHealthy(t *testing.T) {
	healthy := []pipeline.Pipeline{{ID: "a", Name: "A", Status: pipeline.StatusSuccess}}
	if reply := RuleBasedReply("status please", healthy); !strings.Contains(reply, "All pipelines are healthy") {
		t.Fatalf("unexpected status reply %q", reply)
	}
	if reply := RuleBasedReply("any errors?", healthy); !strings.Contains(reply, "don't see any failed pipelines") {
		t.Fatalf("unexpected failure reply %q", reply)
	}
}
