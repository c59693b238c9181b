package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/devops-assistant/internal/chat"
	"github.com/dwizi/devops-assistant/internal/memorylog"
	"github.com/dwizi/devops-assistant/internal/routing"
)

type evalReport struct {
	FilesScanned        int            `json:"files_scanned"`
	ConversationsParsed int            `json:"conversations_parsed"`
	Turns               int            `json:"turns"`
	InboundMessages     int            `json:"inbound_messages"`
	OutboundMessages    int            `json:"outbound_messages"`
	Routes              map[string]int `json:"routes"`
	ResponseTypes       map[string]int `json:"response_types"`
	WorkflowFallbacks   int            `json:"workflow_fallbacks"`
	RateLimited         int            `json:"rate_limited"`
	RuleBasedReplies    int            `json:"rule_based_replies"`
	RouteDrift          int            `json:"route_drift"`
	UnansweredTurns     int            `json:"unanswered_turns"`
	Findings            []evalFinding  `json:"findings"`
	Recommendations     []string       `json:"recommendations"`
}

type evalFinding struct {
	Code    string `json:"code"`
	Count   int    `json:"count"`
	Example string `json:"example,omitempty"`
	Detail  string `json:"detail"`
}

const (
	findingUnanswered = "unanswered_turn"
	findingFallback   = "workflow_fallback"
	findingRateLimit  = "rate_limited"
	findingDrift      = "route_drift"
)

var findingDetails = map[string]string{
	findingUnanswered: "Inbound message has no recorded reply; the request failed or was dropped before a response was written.",
	findingFallback:   "Complex request fell back to canned advice because the workflow agent failed or is not configured.",
	findingRateLimit:  "Message was rejected by the chat rate limiter.",
	findingDrift:      "Message would be routed differently today than when it was answered.",
}

func newChatEvalCommand(logger *slog.Logger) *cobra.Command {
	var (
		targetPath string
		jsonMode   bool
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Scan chat transcripts for routing drift, fallbacks and rate limiting",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstNonEmpty(targetPath, loadConfig(cmd).TranscriptRoot)
			files, err := memorylog.Find(path)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no chat transcripts found at %s", path)
			}

			report := evaluateTranscriptFiles(files)
			logger.Debug("transcripts evaluated", "files", report.FilesScanned, "turns", report.Turns)
			if jsonMode {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(report)
			}
			printEvalReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetPath, "path", "", "transcript file or directory (defaults to the configured transcript root)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "emit JSON report")
	return cmd
}

func printEvalReport(cmd *cobra.Command, report evalReport) {
	cmd.Printf("Files scanned: %d\n", report.FilesScanned)
	cmd.Printf("Conversations parsed: %d\n", report.ConversationsParsed)
	cmd.Printf("Turns: %d (inbound=%d outbound=%d)\n", report.Turns, report.InboundMessages, report.OutboundMessages)
	cmd.Printf("Routes: %s\n", formatCounts(report.Routes))
	cmd.Printf("Response types: %s\n", formatCounts(report.ResponseTypes))
	if len(report.Findings) > 0 {
		cmd.Printf("Findings: %s\n", summarizeFindings(report.Findings))
		for _, finding := range report.Findings {
			example := ""
			if finding.Example != "" {
				example = " [" + finding.Example + "]"
			}
			cmd.Printf("- %s: %d%s\n  %s\n", finding.Code, finding.Count, example, finding.Detail)
		}
	}
	cmd.Println("Recommendations:")
	for index, recommendation := range report.Recommendations {
		cmd.Printf("%d. %s\n", index+1, recommendation)
	}
}

// transcriptEvaluator accumulates one report across many transcript files.
type transcriptEvaluator struct {
	report   evalReport
	findings map[string]*evalFinding
}

func evaluateTranscriptFiles(paths []string) evalReport {
	evaluator := transcriptEvaluator{
		report: evalReport{
			FilesScanned:  len(paths),
			Routes:        map[string]int{},
			ResponseTypes: map[string]int{},
		},
		findings: map[string]*evalFinding{},
	}
	for _, path := range paths {
		transcript, err := memorylog.ReadFile(path)
		if err != nil || len(transcript.Entries) == 0 {
			continue
		}
		evaluator.scan(path, transcript.Turns())
	}
	return evaluator.finish()
}

func (e *transcriptEvaluator) scan(path string, turns []memorylog.Turn) {
	report := &e.report
	report.ConversationsParsed++
	report.Turns += len(turns)
	for _, turn := range turns {
		report.InboundMessages++
		if len(turn.Replies) == 0 {
			report.UnansweredTurns++
			e.note(findingUnanswered, path)
			continue
		}
		for _, reply := range turn.Replies {
			report.OutboundMessages++
			if reply.Route != "" {
				report.Routes[reply.Route]++
			}
			if reply.ResponseType != "" {
				report.ResponseTypes[reply.ResponseType]++
			}
		}

		first := turn.Replies[0]
		switch first.ResponseType {
		case chat.TypeWorkflowFallback:
			report.WorkflowFallbacks++
			e.note(findingFallback, path)
		case chat.TypeRateLimited:
			report.RateLimited++
			e.note(findingRateLimit, path)
		case chat.TypeRuleBased:
			report.RuleBasedReplies++
		}
		if first.Route != "" && string(routing.Classify(turn.Inbound.Text).Route) != first.Route {
			report.RouteDrift++
			e.note(findingDrift, path)
		}
	}
}

// note counts a finding and keeps the first file it was seen in.
func (e *transcriptEvaluator) note(code, path string) {
	if finding, ok := e.findings[code]; ok {
		finding.Count++
		return
	}
	e.findings[code] = &evalFinding{Code: code, Count: 1, Example: path, Detail: findingDetails[code]}
}

func (e *transcriptEvaluator) finish() evalReport {
	codes := make([]string, 0, len(e.findings))
	for code := range e.findings {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		e.report.Findings = append(e.report.Findings, *e.findings[code])
	}
	e.report.Recommendations = recommend(e.report)
	return e.report
}

func recommend(report evalReport) []string {
	rules := []struct {
		applies bool
		advice  string
	}{
		{report.WorkflowFallbacks > 0, "Configure an LLM provider (DEVOPS_ASSISTANT_LLM_PROVIDER) or raise DEVOPS_ASSISTANT_LLM_TIMEOUT_SECONDS so complex requests get a real analysis."},
		{report.RateLimited > 0, "Add frequent automated callers to DEVOPS_ASSISTANT_CHAT_TRUSTED_CLIENTS or raise the per-window rate limit."},
		{report.RouteDrift > 0, "Routing rules changed since these messages were answered; replay the drifted transcripts with `chat replay` to compare replies."},
		{report.RuleBasedReplies > 0 && report.RuleBasedReplies == report.OutboundMessages, "Every reply came from the rule engine; enable an LLM provider for richer quick answers."},
	}
	var advice []string
	for _, rule := range rules {
		if rule.applies {
			advice = append(advice, rule.advice)
		}
	}
	if len(advice) == 0 {
		advice = append(advice, "No systemic regressions were detected in scanned transcripts; keep replaying them after routing changes.")
	}
	return advice
}

func summarizeFindings(findings []evalFinding) string {
	parts := make([]string, 0, len(findings))
	for _, finding := range findings {
		parts = append(parts, fmt.Sprintf("%s=%d", finding.Code, finding.Count))
	}
	return strings.Join(parts, " ")
}
