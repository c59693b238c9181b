package memorylog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Transcript is one parsed transcript file. Entries keep file order.
type Transcript struct {
	Path      string
	ClientKey string
	Entries   []Entry
}

// Turn is an inbound message and the replies recorded after it.
type Turn struct {
	Inbound Entry
	Replies []Entry
}

// FirstReply returns the text of the first recorded reply, or "".
func (t Turn) FirstReply() string {
	if len(t.Replies) == 0 {
		return ""
	}
	return strings.TrimSpace(t.Replies[0].Text)
}

var (
	sectionLine = regexp.MustCompile("^##\\s+(\\S+)\\s+`([^`]+)`\\s*$")
	metaLine    = regexp.MustCompile("^-\\s+([a-z_]+):\\s*`?([^`]*)`?\\s*$")
)

// ReadFile parses the transcript at path.
func ReadFile(path string) (Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return Transcript{}, err
	}
	defer file.Close()
	transcript, err := Parse(file)
	if err != nil {
		return Transcript{}, fmt.Errorf("parse %s: %w", path, err)
	}
	transcript.Path = path
	return transcript, nil
}

// Parse reads the markdown Append produces. Metadata lines directly under a
// section heading describe that entry; everything else is message body.
func Parse(r io.Reader) (Transcript, error) {
	var (
		transcript Transcript
		current    *Entry
		body       []string
		inMeta     bool
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(body, "\n"))
		transcript.Entries = append(transcript.Entries, *current)
		current, body = nil, body[:0]
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if match := sectionLine.FindStringSubmatch(trimmed); match != nil {
			flush()
			stamp, _ := time.Parse(time.RFC3339, match[1])
			current = &Entry{Timestamp: stamp, Direction: strings.ToLower(match[2]), ClientKey: transcript.ClientKey}
			inMeta = true
			continue
		}
		meta := metaLine.FindStringSubmatch(trimmed)
		if current == nil {
			if meta != nil && meta[1] == "client" {
				transcript.ClientKey = strings.TrimSpace(meta[2])
			}
			continue
		}
		if inMeta && meta != nil {
			applyMeta(current, meta[1], strings.TrimSpace(meta[2]))
			continue
		}
		inMeta = false
		body = append(body, line)
	}
	if err := scanner.Err(); err != nil {
		return Transcript{}, err
	}
	flush()
	return transcript, nil
}

func applyMeta(entry *Entry, key, value string) {
	switch key {
	case "direction":
		entry.Direction = strings.ToLower(value)
	case "route":
		entry.Route = value
	case "type":
		entry.ResponseType = value
	}
}

// Turns pairs every inbound entry with the outbound entries that follow it.
// Replies recorded before the first inbound message are dropped.
func (t Transcript) Turns() []Turn {
	var turns []Turn
	for _, entry := range t.Entries {
		switch entry.Direction {
		case DirectionInbound:
			turns = append(turns, Turn{Inbound: entry})
		case DirectionOutbound:
			if len(turns) > 0 {
				last := &turns[len(turns)-1]
				last.Replies = append(last.Replies, entry)
			}
		}
	}
	return turns
}

// Find returns path itself when it is a file, or every transcript under a
// chats directory below it, sorted.
func Find(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("transcript path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(candidate string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(candidate), ".md") {
			return nil
		}
		if strings.Contains(filepath.ToSlash(candidate), "/"+chatsDir+"/") {
			files = append(files, candidate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
