package chat

import (
	"fmt"
	"strings"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

var greetingWords = map[string]struct{}{
	"hi":    {},
	"hello": {},
	"hey":   {},
	"start": {},
}

// RuleBasedReply answers from live pipeline data without a model.
func RuleBasedReply(text string, pipelines []pipeline.Pipeline) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "status") || strings.Contains(lower, "check"):
		return statusReply(pipelines)
	case strings.Contains(lower, "failed") || strings.Contains(lower, "error"):
		return failureReply(pipelines)
	case strings.Contains(lower, "retry"):
		return "I can help you retry failed pipelines. Use the retry action on the dashboard, or let me know which specific pipeline you'd like to retry."
	case strings.Contains(lower, "rollback"):
		return "Rollback will revert to the previous stable version. This is recommended when:\n" +
			"- New code changes are causing issues\n" +
			"- Tests are failing due to recent commits\n" +
			"- You need to quickly restore service\n\n" +
			"Which pipeline would you like to rollback?"
	case strings.Contains(lower, "escalate"):
		return "Escalation will notify the DevOps team. This is recommended when:\n" +
			"- Infrastructure issues are suspected\n" +
			"- Multiple retries have failed\n" +
			"- You need expert assistance\n\n" +
			"I can escalate any pipeline issue for you."
	case isGreeting(lower):
		return "**Hello! DevOps AI Assistant Ready**\n\n" +
			"I'm here to help with your CI/CD pipelines. I can check pipeline status, explain errors in simple terms and recommend retry, rollback or escalate.\n\n" +
			"**Try asking:** \"Check my pipelines\" or \"Help with the failure\""
	default:
		return "I can help you with:\n" +
			"- Checking pipeline status\n" +
			"- Analyzing failures and errors\n" +
			"- Recommending actions (retry/rollback/escalate)\n" +
			"- Viewing detailed logs\n\n" +
			"What specific help do you need with your pipelines?"
	}
}

func statusReply(pipelines []pipeline.Pipeline) string {
	failed := pipeline.Failed(pipelines)
	if len(failed) == 0 {
		return "All pipelines are healthy! No failed pipelines detected."
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "I found %d failed pipeline(s):\n\n", len(failed))
	for _, item := range failed {
		fmt.Fprintf(&builder, "**%s**: Failed at %s stage\n", item.Name, item.Stage)
		if item.Error != "" {
			fmt.Fprintf(&builder, "   Error: %s\n", item.Error)
		}
		builder.WriteString("   **Recommendation**: Try retry first, then consider rollback if issue persists.\n\n")
	}
	return strings.TrimRight(builder.String(), "\n")
}

func failureReply(pipelines []pipeline.Pipeline) string {
	failed := pipeline.Failed(pipelines)
	if len(failed) == 0 {
		return "I don't see any failed pipelines currently. All systems appear to be running normally."
	}
	item := failed[0]
	var builder strings.Builder
	fmt.Fprintf(&builder, "The **%s** pipeline failed at the **%s** stage.\n\n", item.Name, item.Stage)
	if item.Error != "" {
		fmt.Fprintf(&builder, "**Error**: %s\n\n", item.Error)
	}
	builder.WriteString("**My recommendations**:\n")
	builder.WriteString("1. **Retry**: If this looks like a temporary issue\n")
	builder.WriteString("2. **Rollback**: If there are code-related problems\n")
	builder.WriteString("3. **Escalate**: If you need DevOps team assistance\n\n")
	builder.WriteString("Would you like me to execute any of these actions?")
	return builder.String()
}

func isGreeting(lower string) bool {
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if _, ok := greetingWords[word]; ok {
			return true
		}
	}
	return false
}
