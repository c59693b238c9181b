package httpapi

import (
	"net/http"
	"time"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

var rootEndpoints = []string{
	"/health",
	"/pipelines",
	"/pipelines/{id}",
	"/pipelines/{id}/logs",
	"/pipelines/action",
	"/repositories",
	"/api/v1/chat",
	"/api/v1/route",
	"/api/v1/stream",
}

func (r *router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "DevOps Pipeline API",
		"version":   r.deps.Version,
		"endpoints": rootEndpoints,
	})
}

func (r *router) handleHealthSummary(w http.ResponseWriter, req *http.Request) {
	count := 0
	if r.deps.Registry != nil {
		count = r.deps.Registry.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       pipeline.Timestamp(time.Now()),
		"pipelines_count": count,
	})
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "store is unavailable"})
		return
	}
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	writeJSON(w, http.StatusOK, snapshot)
}

// handleQueue reports escalation worker load.
func (r *router) handleQueue(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue is unavailable")
		return
	}
	stats := r.deps.Queue.Stats()
	writeJSON(w, http.StatusOK, map[string]int{
		"workers":  stats.Workers,
		"queued":   stats.Queued,
		"running":  stats.Running,
		"retrying": stats.Retrying,
	})
}
