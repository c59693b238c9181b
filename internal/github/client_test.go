package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

func TestListWorkflowRunsMapsPipelines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/repos/acme/api/actions/runs" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := req.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
			t.Errorf("unexpected accept header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_count":4,"workflow_runs":[
			{"id":101,"name":"CI","status":"completed","conclusion":"success","head_branch":"main","head_sha":"0123456789abcdef","html_url":"https://github.com/acme/api/actions/runs/101","created_at":"2026-01-10T10:00:00Z","updated_at":"2026-01-10T10:03:25Z"},
			{"id":102,"name":"CI","status":"completed","conclusion":"failure","head_branch":"develop","head_sha":"fedcba9876543210","display_title":"Fix flaky tests","created_at":"2026-01-10T09:00:00Z","updated_at":"2026-01-10T09:01:05Z"},
			{"id":103,"name":null,"status":"in_progress","conclusion":null,"head_branch":null,"head_sha":"","created_at":"2026-01-10T11:00:00Z","updated_at":"2026-01-10T11:00:30Z"},
			{"id":104,"name":"Nightly","status":"waiting","conclusion":null,"head_branch":"main","head_sha":"abc","created_at":"2026-01-10T11:00:00Z"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	items, err := client.ListWorkflowRuns(context.Background(), "acme", "api", 10)
	if err != nil {
		t.Fatalf("list workflow runs: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 pipelines, got %d", len(items))
	}

	success := items[0]
	if success.ID != "101" || success.Status != pipeline.StatusSuccess || success.Commit != "0123456" || success.Duration != "3m 25s" || success.Stage != "completed" {
		t.Fatalf("unexpected success pipeline: %+v", success)
	}
	failed := items[1]
	if failed.Status != pipeline.StatusFailed || failed.Error != "Workflow failure: Fix flaky tests" || failed.Duration != "1m 5s" {
		t.Fatalf("unexpected failed pipeline: %+v", failed)
	}
	running := items[2]
	if running.Status != pipeline.StatusRunning || running.Name != "Workflow" || running.Branch != "main" || running.Commit != "unknown" || running.Duration != "" {
		t.Fatalf("unexpected running pipeline: %+v", running)
	}
	if items[3].Status != pipeline.StatusUnknown {
		t.Fatalf("expected unknown status, got %+v", items[3])
	}
}

func TestListWorkflowRunsHonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"workflow_runs":[{"id":1,"status":"queued"},{"id":2,"status":"queued"},{"id":3,"status":"queued"}]}`))
	}))
	defer server.Close()

	items, err := NewClient(server.URL, "secret", time.Second).ListWorkflowRuns(context.Background(), "acme", "api", 2)
	if err != nil {
		t.Fatalf("list workflow runs: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(items))
	}
}

func TestListRepositoriesPaginates(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests++
		if req.URL.Path != "/user/repos" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if req.URL.Query().Get("sort") != "updated" || req.URL.Query().Get("per_page") != "100" {
			t.Errorf("unexpected query %s", req.URL.RawQuery)
		}
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		if page > 2 {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = fmt.Fprintf(w, `[{"id":%d,"name":"repo-%d","full_name":"acme/repo-%d","description":null,"language":"Go","updated_at":"2026-01-01T00:00:00Z","owner":{"login":"acme"}}]`, page, page, page)
	}))
	defer server.Close()

	repos, err := NewClient(server.URL, "secret", time.Second).ListRepositories(context.Background())
	if err != nil {
		t.Fatalf("list repositories: %v", err)
	}
	if requests != 3 {
		t.Fatalf("expected 3 requests, got %d", requests)
	}
	if len(repos) != 2 || repos[0].Owner != "acme" || repos[1].FullName != "acme/repo-2" || repos[0].Language != "Go" {
		t.Fatalf("unexpected repositories: %+v", repos)
	}
}

func TestClientRequiresToken(t *testing.T) {
	client := NewClient("", "", time.Second)
	if _, err := client.ListRepositories(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.ListWorkflowRuns(context.Background(), "a", "b", 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClientReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "bad", time.Second).ListWorkflowRuns(context.Background(), "acme", "api", 5)
	if err == nil {
		t.Fatal("expected api error")
	}
}
