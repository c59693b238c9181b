package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/devops-assistant/internal/store"
)

func queryLimit(req *http.Request) int {
	limit, err := strconv.Atoi(strings.TrimSpace(req.URL.Query().Get("limit")))
	if err != nil || limit < 1 {
		return 0
	}
	return limit
}

func (r *router) handleActionEvents(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	items, err := r.deps.Store.ListActionEvents(req.Context(), store.ListActionEventsInput{
		PipelineID: strings.TrimSpace(req.URL.Query().Get("pipeline_id")),
		Action:     strings.TrimSpace(req.URL.Query().Get("action")),
		Limit:      queryLimit(req),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleEscalations(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	items, err := r.deps.Store.ListEscalations(req.Context(), strings.TrimSpace(req.URL.Query().Get("pipeline_id")), queryLimit(req))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleWorkflowRuns(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	items, err := r.deps.Store.ListWorkflowRuns(req.Context(), queryLimit(req))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleWorkflowRun(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is unavailable")
		return
	}
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/v1/workflows/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow run id is required")
		return
	}
	run, err := r.deps.Store.LookupWorkflowRun(req.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrWorkflowRunNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}
