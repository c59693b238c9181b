// Package routing decides whether a chat message can be answered directly or
// needs the multi-step workflow agent.
package routing

import (
	"regexp"
	"strings"
)

type Route string

const (
	RouteSimple  Route = "simple"
	RouteComplex Route = "complex"
)

const (
	ReasonPipelineKeyword = "pipeline_keyword"
	ReasonComplexKeyword  = "complex_keyword"
	ReasonActionKeyword   = "action_keyword"
	ReasonLongQuery       = "long_query"
	ReasonPattern         = "workflow_pattern"
	ReasonDefault         = "default"
)

// MaxSimpleWords is the longest message, in whitespace-separated words, that
// can still take the simple route.
const MaxSimpleWords = 15

var pipelineKeywords = []string{
	"pipeline status", "check pipeline", "pipeline failed", "deployment failed",
	"github", "repository", "workflow", "build failed", "ci/cd",
	"check my repo", "repo status", "github actions",
}

var complexKeywords = []string{
	"analyze", "investigate", "research", "detailed", "deep",
	"workflow", "automation", "notify team", "create report",
	"escalate to", "send alert", "document", "incident",
}

var actionKeywords = []string{
	"trigger retry", "execute rollback", "start workflow",
	"notify devops", "create incident", "send to slack",
}

var workflowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`analyze.*and.*notify`),
	regexp.MustCompile(`check.*then.*alert`),
	regexp.MustCompile(`investigate.*create.*report`),
	regexp.MustCompile(`research.*solutions.*for`),
	regexp.MustCompile(`check.*status`),
	regexp.MustCompile(`pipeline.*status`),
}

type Decision struct {
	Route  Route  `json:"route"`
	Reason string `json:"reason"`
	Match  string `json:"match,omitempty"`
}

// Classify checks keyword lists, message length and workflow patterns in
// that order. The first hit sends the message down the complex route.
func Classify(text string) Decision {
	lower := strings.ToLower(text)

	if keyword, ok := firstContained(lower, pipelineKeywords); ok {
		return Decision{Route: RouteComplex, Reason: ReasonPipelineKeyword, Match: keyword}
	}
	if keyword, ok := firstContained(lower, complexKeywords); ok {
		return Decision{Route: RouteComplex, Reason: ReasonComplexKeyword, Match: keyword}
	}
	if keyword, ok := firstContained(lower, actionKeywords); ok {
		return Decision{Route: RouteComplex, Reason: ReasonActionKeyword, Match: keyword}
	}
	if len(strings.Fields(lower)) > MaxSimpleWords {
		return Decision{Route: RouteComplex, Reason: ReasonLongQuery}
	}
	for _, pattern := range workflowPatterns {
		if pattern.MatchString(lower) {
			return Decision{Route: RouteComplex, Reason: ReasonPattern, Match: pattern.String()}
		}
	}
	return Decision{Route: RouteSimple, Reason: ReasonDefault}
}

func IsComplex(text string) bool {
	return Classify(text).Route == RouteComplex
}

func firstContained(text string, keywords []string) (string, bool) {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return keyword, true
		}
	}
	return "", false
}
