package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	defaultTimeoutSec = 120
	maxTimeoutSec     = 600
)

// boundedTimeout clamps a --timeout-sec value to (0, 600] seconds.
func boundedTimeout(seconds int) time.Duration {
	switch {
	case seconds < 1:
		seconds = defaultTimeoutSec
	case seconds > maxTimeoutSec:
		seconds = maxTimeoutSec
	}
	return time.Duration(seconds) * time.Second
}

// compactLine folds whitespace and cuts the result at limit bytes.
func compactLine(text string, limit int) string {
	line := strings.Join(strings.Fields(text), " ")
	if limit < 1 || len(line) <= limit {
		return line
	}
	return strings.TrimSpace(line[:limit]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// formatCounts renders a histogram as sorted key=value pairs.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var out strings.Builder
	for index, key := range keys {
		if index > 0 {
			out.WriteByte(' ')
		}
		fmt.Fprintf(&out, "%s=%d", key, counts[key])
	}
	return out.String()
}
