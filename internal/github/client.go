// Package github reads repositories and Actions workflow runs from the
// GitHub REST API and maps runs onto pipeline records.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/pipeline"
)

const (
	DefaultBaseURL = "https://api.github.com"

	repositoriesPerPage = 100
	maxRepositories     = 1000
	workflowRunsPerPage = 50
	defaultRunLimit     = 10
)

var ErrNotConfigured = errors.New("github token is not configured")

type Repository struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	UpdatedAt   string `json:"updated_at"`
	Owner       string `json:"owner"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

type repositoryPayload struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	Language    *string `json:"language"`
	UpdatedAt   string  `json:"updated_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// ListRepositories pages through the authenticated user's repositories,
// most recently updated first, stopping at an empty page or 1000 entries.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	results := []Repository{}
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(repositoriesPerPage))
		query.Set("sort", "updated")

		var payload []repositoryPayload
		if err := c.get(ctx, "/user/repos?"+query.Encode(), &payload); err != nil {
			return results, err
		}
		if len(payload) == 0 {
			break
		}
		for _, item := range payload {
			repo := Repository{
				ID:        item.ID,
				Name:      item.Name,
				FullName:  item.FullName,
				UpdatedAt: item.UpdatedAt,
				Owner:     item.Owner.Login,
			}
			if item.Description != nil {
				repo.Description = *item.Description
			}
			if item.Language != nil {
				repo.Language = *item.Language
			}
			results = append(results, repo)
		}
		if len(results) >= maxRepositories {
			break
		}
	}
	return results, nil
}

type workflowRun struct {
	ID           int64   `json:"id"`
	Name         *string `json:"name"`
	Status       string  `json:"status"`
	Conclusion   *string `json:"conclusion"`
	HeadBranch   *string `json:"head_branch"`
	HeadSHA      string  `json:"head_sha"`
	DisplayTitle *string `json:"display_title"`
	HTMLURL      string  `json:"html_url"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type workflowRunsPayload struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

// ListWorkflowRuns returns the most recent Actions runs of owner/repo as
// pipeline records.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, limit int) ([]pipeline.Pipeline, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}
	path := fmt.Sprintf("/repos/%s/%s/actions/runs?per_page=%d", url.PathEscape(owner), url.PathEscape(repo), workflowRunsPerPage)

	var payload workflowRunsPayload
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	runs := payload.WorkflowRuns
	if len(runs) > limit {
		runs = runs[:limit]
	}
	results := make([]pipeline.Pipeline, 0, len(runs))
	for _, run := range runs {
		results = append(results, run.toPipeline())
	}
	return results, nil
}

func (r workflowRun) toPipeline() pipeline.Pipeline {
	conclusion := deref(r.Conclusion)
	item := pipeline.Pipeline{
		ID:      strconv.FormatInt(r.ID, 10),
		Name:    deref(r.Name),
		Status:  mapStatus(r.Status, conclusion),
		Stage:   r.Status,
		LastRun: r.CreatedAt,
		Commit:  "unknown",
		Branch:  deref(r.HeadBranch),
		URL:     r.HTMLURL,
	}
	if item.Name == "" {
		item.Name = "Workflow"
	}
	if item.Branch == "" {
		item.Branch = "main"
	}
	if sha := strings.TrimSpace(r.HeadSHA); sha != "" {
		if len(sha) > 7 {
			sha = sha[:7]
		}
		item.Commit = sha
	}
	if r.Status == "completed" && r.CreatedAt != "" && r.UpdatedAt != "" {
		item.Duration = runDuration(r.CreatedAt, r.UpdatedAt)
	}
	switch conclusion {
	case "failure", "cancelled", "timed_out":
		title := deref(r.DisplayTitle)
		if title == "" {
			title = "Unknown error"
		}
		item.Error = fmt.Sprintf("Workflow %s: %s", conclusion, title)
	}
	return item
}

func mapStatus(status, conclusion string) pipeline.Status {
	switch status {
	case "completed":
		if conclusion == "success" {
			return pipeline.StatusSuccess
		}
		return pipeline.StatusFailed
	case "in_progress", "queued":
		return pipeline.StatusRunning
	default:
		return pipeline.StatusUnknown
	}
}

func runDuration(createdAt, updatedAt string) string {
	start, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return "Unknown"
	}
	end, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return "Unknown"
	}
	seconds := int(end.Sub(start).Seconds())
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("github api error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}
