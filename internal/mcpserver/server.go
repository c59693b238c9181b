// Package mcpserver exposes pipeline operations as MCP tools so external
// agents can inspect and act on pipelines the same way the REST API does.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwizi/devops-assistant/internal/actions"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/routing"
)

type Registry interface {
	List() []pipeline.Pipeline
	Get(id string) (pipeline.Pipeline, error)
	Logs(id string) ([]string, error)
}

type ActionExecutor interface {
	Execute(ctx context.Context, request actions.Request) (pipeline.ActionResult, error)
}

type Server struct {
	MCPServer *sdkmcp.Server

	registry Registry
	actions  ActionExecutor
	logger   *slog.Logger
}

func New(registry Registry, executor ActionExecutor, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(version) == "" {
		version = "dev"
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "devops-assistant", Version: version}, nil),
		registry:  registry,
		actions:   executor,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Handler serves the MCP streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.MCPServer
	}, nil)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_pipelines",
		Description: "List CI/CD pipelines with their status and a summary of failures.",
	}, s.handleListPipelines)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_pipeline",
		Description: "Get one pipeline by id.",
	}, s.handleGetPipeline)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "pipeline_logs",
		Description: "Get the recent log lines of a pipeline.",
	}, s.handlePipelineLogs)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "pipeline_action",
		Description: "Run retry, rollback or escalate against a pipeline.",
	}, s.handlePipelineAction)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "route_message",
		Description: "Classify a chat message as simple or complex the way the assistant routes it.",
	}, s.handleRouteMessage)
}

type listPipelinesInput struct {
	Status string `json:"status,omitempty" jsonschema:"only return pipelines in this status (success, failed, running, unknown)"`
}

type listPipelinesOutput struct {
	Pipelines []pipeline.Pipeline `json:"pipelines"`
	Summary   pipeline.Summary    `json:"summary"`
}

type pipelineIDInput struct {
	PipelineID string `json:"pipeline_id" jsonschema:"pipeline id, for example backend-api"`
}

type getPipelineOutput struct {
	Pipeline pipeline.Pipeline `json:"pipeline"`
}

type pipelineLogsOutput struct {
	PipelineID string   `json:"pipeline_id"`
	Logs       []string `json:"logs"`
}

type pipelineActionInput struct {
	PipelineID string `json:"pipeline_id" jsonschema:"pipeline id"`
	Action     string `json:"action" jsonschema:"retry, rollback or escalate"`
	Actor      string `json:"actor,omitempty" jsonschema:"who requested the action"`
}

type routeMessageInput struct {
	Message string `json:"message" jsonschema:"chat message to classify"`
}

type routeMessageOutput struct {
	Route  routing.Route `json:"route"`
	Reason string        `json:"reason"`
	Match  string        `json:"match,omitempty"`
}

func (s *Server) handleListPipelines(_ context.Context, _ *sdkmcp.CallToolRequest, input listPipelinesInput) (*sdkmcp.CallToolResult, listPipelinesOutput, error) {
	items := s.registry.List()
	summary := pipeline.Summarize(items, 0)
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status != "" {
		filtered := make([]pipeline.Pipeline, 0, len(items))
		for _, item := range items {
			if string(item.Status) == status {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	return nil, listPipelinesOutput{Pipelines: items, Summary: summary}, nil
}

func (s *Server) handleGetPipeline(_ context.Context, _ *sdkmcp.CallToolRequest, input pipelineIDInput) (*sdkmcp.CallToolResult, getPipelineOutput, error) {
	item, err := s.registry.Get(input.PipelineID)
	if err != nil {
		return nil, getPipelineOutput{}, fmt.Errorf("get_pipeline %q: %w", input.PipelineID, err)
	}
	return nil, getPipelineOutput{Pipeline: item}, nil
}

func (s *Server) handlePipelineLogs(_ context.Context, _ *sdkmcp.CallToolRequest, input pipelineIDInput) (*sdkmcp.CallToolResult, pipelineLogsOutput, error) {
	lines, err := s.registry.Logs(input.PipelineID)
	if err != nil {
		return nil, pipelineLogsOutput{}, fmt.Errorf("pipeline_logs %q: %w", input.PipelineID, err)
	}
	return nil, pipelineLogsOutput{PipelineID: strings.TrimSpace(input.PipelineID), Logs: lines}, nil
}

func (s *Server) handlePipelineAction(ctx context.Context, _ *sdkmcp.CallToolRequest, input pipelineActionInput) (*sdkmcp.CallToolResult, pipeline.ActionResult, error) {
	if s.actions == nil {
		return nil, pipeline.ActionResult{}, fmt.Errorf("pipeline actions are not available")
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = "mcp-client"
	}
	result, err := s.actions.Execute(ctx, actions.Request{
		PipelineID: input.PipelineID,
		Action:     input.Action,
		Actor:      actor,
		Source:     "mcp",
	})
	if err != nil {
		return nil, pipeline.ActionResult{}, fmt.Errorf("pipeline_action: %w", err)
	}
	s.logger.Info("mcp pipeline action", "pipeline_id", result.PipelineID, "action", result.Action)
	return nil, result, nil
}

func (s *Server) handleRouteMessage(_ context.Context, _ *sdkmcp.CallToolRequest, input routeMessageInput) (*sdkmcp.CallToolResult, routeMessageOutput, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, routeMessageOutput{}, fmt.Errorf("message is required")
	}
	decision := routing.Classify(input.Message)
	return nil, routeMessageOutput{Route: decision.Route, Reason: decision.Reason, Match: decision.Match}, nil
}
