package tui

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/gorilla/websocket"

	"github.com/dwizi/devops-assistant/internal/stream"
)

const streamBuffer = 16

type streamConnectedMsg struct {
	events <-chan stream.Event
}

type streamEventMsg struct {
	event stream.Event
}

type streamClosedMsg struct {
	err error
}

// subscribeCmd dials the pipeline stream. A failed dial leaves the model on
// periodic polling.
func subscribeCmd(ctx context.Context, baseURL string) tea.Cmd {
	return func() tea.Msg {
		events, err := dialStream(ctx, baseURL)
		if err != nil {
			return streamClosedMsg{err: err}
		}
		return streamConnectedMsg{events: events}
	}
}

func waitForEvent(events <-chan stream.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{event: event}
	}
}

func dialStream(ctx context.Context, baseURL string) (<-chan stream.Event, error) {
	target, err := streamURL(baseURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial pipeline stream: %w", err)
	}

	events := make(chan stream.Event, streamBuffer)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var event stream.Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func streamURL(baseURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch parsed.Scheme {
	case "https", "wss":
		parsed.Scheme = "wss"
	case "http", "ws", "":
		parsed.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("api url %q has no host", baseURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api/v1/stream"
	parsed.RawQuery = ""
	return parsed.String(), nil
}
