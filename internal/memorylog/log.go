// Package memorylog keeps chat transcripts as markdown, one file per client
// per UTC day under <root>/chats/<client>/<date>.md, and reads them back for
// replay and evaluation.
package memorylog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	chatsDir      = "chats"
	dayLayout     = "2006-01-02"
	fileTitle     = "# Chat Transcript"
	fallbackOwner = "anonymous"
)

type Entry struct {
	Root         string
	ClientKey    string
	Direction    string
	Route        string
	ResponseType string
	Text         string
	Timestamp    time.Time
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Append writes one entry. It is a no-op when Root or Text is empty.
func Append(entry Entry) error {
	root := strings.TrimSpace(entry.Root)
	text := strings.TrimSpace(entry.Text)
	if root == "" || text == "" {
		return nil
	}

	client := clientDir(entry.ClientKey)
	stamp := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		stamp = time.Now().UTC()
	}
	dir := filepath.Join(root, chatsDir, client)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	path := filepath.Join(dir, stamp.Format(dayLayout)+".md")

	var out strings.Builder
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(&out, "%s\n\n", fileTitle)
		writeMeta(&out, "client", client)
		writeMeta(&out, "date", stamp.Format(dayLayout))
		out.WriteString("\n")
	}
	direction := strings.ToLower(strings.TrimSpace(entry.Direction))
	if direction == "" {
		direction = DirectionInbound
	}
	fmt.Fprintf(&out, "## %s `%s`\n", stamp.Format(time.RFC3339), strings.ToUpper(direction))
	writeMeta(&out, "direction", direction)
	writeMeta(&out, "route", entry.Route)
	writeMeta(&out, "type", entry.ResponseType)
	fmt.Fprintf(&out, "\n%s\n\n", text)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(out.String()); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// writeMeta skips blank values so optional fields leave no trace.
func writeMeta(out *strings.Builder, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(out, "- %s: `%s`\n", key, value)
	}
}

func clientDir(key string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(key), " ", "-")
	cleaned = unsafeSegment.ReplaceAllString(cleaned, "-")
	cleaned = strings.ToLower(strings.Trim(cleaned, "-."))
	if cleaned == "" {
		return fallbackOwner
	}
	return cleaned
}
