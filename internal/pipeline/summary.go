package pipeline

import (
	"fmt"
	"strings"
)

type FailedDetail struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type Summary struct {
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Running int            `json:"running"`
	Unknown int            `json:"unknown"`
	Details []FailedDetail `json:"failed_details,omitempty"`
}

// Summarize counts pipelines by status and keeps up to maxDetails failed
// pipelines for context. A non-positive maxDetails keeps all of them.
func Summarize(items []Pipeline, maxDetails int) Summary {
	summary := Summary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case StatusSuccess:
			summary.Success++
		case StatusFailed:
			summary.Failed++
			if maxDetails <= 0 || len(summary.Details) < maxDetails {
				errorText := strings.TrimSpace(item.Error)
				if errorText == "" {
					errorText = "Unknown error"
				}
				summary.Details = append(summary.Details, FailedDetail{ID: item.ID, Name: item.Name, Error: errorText})
			}
		case StatusRunning:
			summary.Running++
		default:
			summary.Unknown++
		}
	}
	return summary
}

// ContextBlock renders the summary as a prompt section.
func (s Summary) ContextBlock() string {
	var builder strings.Builder
	builder.WriteString("Current Pipeline Status:\n")
	fmt.Fprintf(&builder, "- %d successful pipelines\n", s.Success)
	fmt.Fprintf(&builder, "- %d failed pipelines\n", s.Failed)
	fmt.Fprintf(&builder, "- %d running pipelines\n", s.Running)
	if len(s.Details) > 0 {
		builder.WriteString("\nFailed Pipeline Details:\n")
		for _, detail := range s.Details {
			fmt.Fprintf(&builder, "- %s: %s\n", detail.Name, detail.Error)
		}
	}
	return strings.TrimRight(builder.String(), "\n")
}

// Failed returns the failed pipelines in registry order.
func Failed(items []Pipeline) []Pipeline {
	results := []Pipeline{}
	for _, item := range items {
		if item.Status == StatusFailed {
			results = append(results, item)
		}
	}
	return results
}
