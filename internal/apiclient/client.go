// Package apiclient talks to the devops-assistant HTTP API. The CLI and the
// TUI both use it.
package apiclient

import (
	"bytes"
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

	"github.com/dwizi/devops-assistant/internal/chat"
	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/routing"
	"github.com/dwizi/devops-assistant/internal/store"
)

// ErrRateLimited is returned alongside the limiter's reply when the server
// answers a chat message with 429.
var ErrRateLimited = errors.New("chat rate limited")

// ErrRejected is returned alongside the refusal text when the server turns a
// chat message down for its content, such as a message over the size limit.
var ErrRejected = errors.New("chat message rejected")

var errPipelineID = errors.New("pipeline id is required")

// APIError is a non-2xx answer. Message is the server's `error` field, or
// the HTTP status text when the body has none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Health struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	PipelinesCount int    `json:"pipelines_count"`
}

type PipelineLogs struct {
	PipelineID string   `json:"pipeline_id"`
	Logs       []string `json:"logs"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	ClientKey string `json:"client_key,omitempty"`
}

type listEnvelope[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// New leaves headroom over the server's model timeout so slow workflow
// replies are not cut off client side.
func New(cfg config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   strings.TrimSpace(cfg.APIToken),
		http:    &http.Client{Timeout: time.Duration(cfg.LLMTimeoutSec)*time.Second + 30*time.Second},
	}
}

// WithTimeout returns a copy with its own http.Client. Timeouts under a
// second are ignored.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil || timeout < time.Second {
		return c
	}
	clone := *c
	httpClient := http.Client{}
	if c.http != nil {
		httpClient = *c.http
	}
	httpClient.Timeout = timeout
	clone.http = &httpClient
	return &clone
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.call(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) Heartbeat(ctx context.Context) (heartbeat.Snapshot, error) {
	var out heartbeat.Snapshot
	if err := c.call(ctx, http.MethodGet, "/api/v1/heartbeat", nil, &out); err != nil {
		return heartbeat.Snapshot{}, err
	}
	return out, nil
}

func (c *Client) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	var out []pipeline.Pipeline
	if err := c.call(ctx, http.MethodGet, "/pipelines", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPipeline(ctx context.Context, id string) (pipeline.Pipeline, error) {
	path, err := pipelinePath(id, "")
	if err != nil {
		return pipeline.Pipeline{}, err
	}
	var out pipeline.Pipeline
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return pipeline.Pipeline{}, err
	}
	return out, nil
}

func (c *Client) PipelineLogs(ctx context.Context, id string) (PipelineLogs, error) {
	path, err := pipelinePath(id, "/logs")
	if err != nil {
		return PipelineLogs{}, err
	}
	var out PipelineLogs
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return PipelineLogs{}, err
	}
	return out, nil
}

func (c *Client) Action(ctx context.Context, pipelineID, action string) (pipeline.ActionResult, error) {
	body := map[string]string{
		"pipeline_id": strings.TrimSpace(pipelineID),
		"action":      strings.TrimSpace(action),
	}
	var out pipeline.ActionResult
	if err := c.call(ctx, http.MethodPost, "/pipelines/action", body, &out); err != nil {
		return pipeline.ActionResult{}, err
	}
	return out, nil
}

// Chat returns the limiter's reply together with ErrRateLimited on 429 or
// ErrRejected on 413.
func (c *Client) Chat(ctx context.Context, input ChatRequest) (chat.MessageOutput, error) {
	input.Message = strings.TrimSpace(input.Message)
	if input.Message == "" {
		return chat.MessageOutput{}, errors.New("message is required")
	}
	var out chat.MessageOutput
	err := c.call(ctx, http.MethodPost, "/api/v1/chat", input, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests:
			return out, ErrRateLimited
		case http.StatusRequestEntityTooLarge:
			return out, ErrRejected
		}
	}
	if err != nil {
		return chat.MessageOutput{}, err
	}
	return out, nil
}

func (c *Client) Route(ctx context.Context, message string) (routing.Decision, error) {
	var out routing.Decision
	if err := c.call(ctx, http.MethodPost, "/api/v1/route", map[string]string{"message": message}, &out); err != nil {
		return routing.Decision{}, err
	}
	return out, nil
}

func (c *Client) ListEscalations(ctx context.Context, pipelineID string, limit int) ([]store.Escalation, error) {
	var out listEnvelope[store.Escalation]
	if err := c.call(ctx, http.MethodGet, auditPath("/api/v1/escalations", pipelineID, limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListActionEvents(ctx context.Context, pipelineID string, limit int) ([]store.ActionEvent, error) {
	var out listEnvelope[store.ActionEvent]
	if err := c.call(ctx, http.MethodGet, auditPath("/api/v1/actions", pipelineID, limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func pipelinePath(id, suffix string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errPipelineID
	}
	return "/pipelines/" + url.PathEscape(id) + suffix, nil
}

func auditPath(path, pipelineID string, limit int) string {
	query := url.Values{}
	if id := strings.TrimSpace(pipelineID); id != "" {
		query.Set("pipeline_id", id)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// call sends body as JSON when non-nil and decodes the answer into out. A
// non-2xx answer still decodes into out, so callers can read a structured
// reply next to the *APIError.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return failure(res, raw, out)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func failure(res *http.Response, raw []byte, out any) error {
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &envelope)
	if out != nil {
		_ = json.Unmarshal(raw, out)
	}
	message := strings.TrimSpace(envelope.Error)
	if message == "" {
		message = res.Status
	}
	return &APIError{Status: res.StatusCode, Message: message}
}
