// Package stream pushes pipeline snapshots to websocket clients.
package stream

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

const (
	EventPipelines = "pipelines"
	EventHealth    = "health"

	clientBuffer = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

type Event struct {
	Type      string              `json:"type"`
	Pipelines []pipeline.Pipeline `json:"pipelines,omitempty"`
	Component string              `json:"component,omitempty"`
	State     string              `json:"state,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp string              `json:"timestamp"`
}

type Snapshotter interface {
	List() []pipeline.Pipeline
}

// Hub fans registry changes out to connected clients. A client that falls
// behind drops events rather than blocking publishers.
type Hub struct {
	source   Snapshotter
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan Event]struct{}
}

func NewHub(source Snapshotter, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[chan Event]struct{}{},
	}
}

// PublishPipelines matches pipeline.Listener so the hub can Watch a registry.
func (h *Hub) PublishPipelines(items []pipeline.Pipeline) {
	h.Publish(Event{Type: EventPipelines, Pipelines: items})
}

func (h *Hub) Publish(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = pipeline.Timestamp(time.Now())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client <- event:
		default:
			h.logger.Warn("stream client lagging, event dropped", "type", event.Type)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan Event {
	client := make(chan Event, clientBuffer)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *Hub) unsubscribe(client chan Event) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := h.subscribe()
	defer h.unsubscribe(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	initial := Event{Type: EventPipelines, Timestamp: pipeline.Timestamp(time.Now())}
	if h.source != nil {
		initial.Pipelines = h.source.List()
	}
	if err := writeEvent(conn, initial); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case event := <-events:
			if err := writeEvent(conn, event); err != nil {
				h.logger.Debug("stream write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(event)
}
