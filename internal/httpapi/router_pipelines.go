package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dwizi/devops-assistant/internal/actions"
	"github.com/dwizi/devops-assistant/internal/pipeline"
)

const pipelineNotFound = "Pipeline not found"

func (r *router) handlePipelines(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	owner := strings.TrimSpace(req.URL.Query().Get("owner"))
	name := strings.TrimSpace(req.URL.Query().Get("name"))
	if owner != "" && name != "" {
		r.writeWorkflowRuns(w, req, owner, name)
		return
	}
	items := []pipeline.Pipeline{}
	if r.deps.Registry != nil {
		items = r.deps.Registry.List()
	}
	writeJSON(w, http.StatusOK, items)
}

// writeWorkflowRuns answers with live GitHub runs. Upstream failures are
// logged and reported as an empty list so the dashboard keeps rendering.
func (r *router) writeWorkflowRuns(w http.ResponseWriter, req *http.Request, owner, name string) {
	items := []pipeline.Pipeline{}
	if r.deps.GitHub == nil || !r.deps.GitHub.Configured() {
		writeJSON(w, http.StatusOK, items)
		return
	}
	runs, err := r.deps.GitHub.ListWorkflowRuns(req.Context(), owner, name, r.deps.Config.GitHubRunLimit)
	if err != nil {
		r.deps.Logger.Warn("github workflow runs unavailable", "owner", owner, "repo", name, "error", err)
		writeJSON(w, http.StatusOK, items)
		return
	}
	if runs != nil {
		items = runs
	}
	writeJSON(w, http.StatusOK, items)
}

func (r *router) handlePipelineItem(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/pipelines/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "logs") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.deps.Registry == nil {
		writeError(w, http.StatusNotFound, pipelineNotFound)
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		lines, err := r.deps.Registry.Logs(id)
		if err != nil {
			writeError(w, http.StatusNotFound, pipelineNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pipeline_id": id,
			"logs":        lines,
		})
		return
	}
	item, err := r.deps.Registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, pipelineNotFound)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type actionRequest struct {
	PipelineID string `json:"pipeline_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (r *router) handlePipelineAction(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodPost) {
		return
	}
	if !r.authorized(req) {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if r.deps.Actions == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline actions are unavailable")
		return
	}

	var payload actionRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	// the action is validated after the lookup so an unknown pipeline is a
	// 404 whatever the action says
	if strings.TrimSpace(payload.PipelineID) == "" {
		writeError(w, http.StatusBadRequest, "pipeline_id is required")
		return
	}

	result, err := r.deps.Actions.Execute(req.Context(), actions.Request{
		PipelineID: payload.PipelineID,
		Action:     payload.Action,
		Actor:      "api",
		Source:     "http",
	})
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrPipelineNotFound):
			writeError(w, http.StatusNotFound, pipelineNotFound)
		case errors.Is(err, pipeline.ErrInvalidAction):
			writeError(w, http.StatusBadRequest, pipeline.InvalidActionMessage)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// authorized checks the bearer token. An empty configured token disables the
// check.
func (r *router) authorized(req *http.Request) bool {
	token := strings.TrimSpace(r.deps.Config.APIToken)
	if token == "" {
		return true
	}
	return req.Header.Get("Authorization") == "Bearer "+token
}

func (r *router) handleRepositories(w http.ResponseWriter, req *http.Request) {
	if !methodAllowed(w, req, http.MethodGet) {
		return
	}
	if r.deps.GitHub == nil || !r.deps.GitHub.Configured() {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	repos, err := r.deps.GitHub.ListRepositories(req.Context())
	if err != nil {
		r.deps.Logger.Warn("github repositories unavailable", "error", err)
	}
	if len(repos) == 0 {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, repos)
}
