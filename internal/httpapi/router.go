package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/actions"
	"github.com/dwizi/devops-assistant/internal/chat"
	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/github"
	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/orchestrator"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
)

type ActionExecutor interface {
	Execute(ctx context.Context, request actions.Request) (pipeline.ActionResult, error)
}

type ChatHandler interface {
	HandleMessage(ctx context.Context, input chat.MessageInput) (chat.MessageOutput, error)
}

type GitHubClient interface {
	Configured() bool
	ListRepositories(ctx context.Context) ([]github.Repository, error)
	ListWorkflowRuns(ctx context.Context, owner, repo string, limit int) ([]pipeline.Pipeline, error)
}

type QueueInspector interface {
	Stats() orchestrator.Stats
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Store               *store.Store
	Registry            *pipeline.Registry
	Actions             ActionExecutor
	Chat                ChatHandler
	GitHub              GitHubClient
	Stream              http.Handler
	MCP                 http.Handler
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
	Queue               QueueInspector
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if strings.TrimSpace(deps.Version) == "" {
		deps.Version = "dev"
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/", rt.handleRoot)
	mux.HandleFunc("/health", rt.handleHealthSummary)
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/pipelines", rt.handlePipelines)
	mux.HandleFunc("/pipelines/", rt.handlePipelineItem)
	mux.HandleFunc("/pipelines/action", rt.handlePipelineAction)
	mux.HandleFunc("/repositories", rt.handleRepositories)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/queue", rt.handleQueue)
	mux.HandleFunc("/api/v1/actions", rt.handleActionEvents)
	mux.HandleFunc("/api/v1/escalations", rt.handleEscalations)
	mux.HandleFunc("/api/v1/workflows", rt.handleWorkflowRuns)
	mux.HandleFunc("/api/v1/workflows/", rt.handleWorkflowRun)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/chat/history", rt.handleChatHistory)
	mux.HandleFunc("/api/v1/route", rt.handleRoute)
	if deps.Stream != nil {
		mux.Handle("/api/v1/stream", deps.Stream)
	}
	if deps.MCP != nil {
		mux.Handle("/mcp", rt.requireToken(deps.MCP))
	}
	return withCORS(deps.Config.AllowedOrigins(), mux)
}

// requireToken guards handlers that can mutate pipelines with the same bearer
// check as the REST action route.
func (r *router) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.authorized(req) {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, req)
	})
}

// withCORS adds the dashboard CORS headers to every response and answers
// preflight requests directly.
func withCORS(allowedOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		headers := w.Header()
		headers.Set("Access-Control-Allow-Origin", corsOrigin(allowedOrigins, req.Header.Get("Origin")))
		headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if len(allowedOrigins) > 1 || (len(allowedOrigins) == 1 && allowedOrigins[0] != "*") {
			headers.Add("Vary", "Origin")
		}
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// corsOrigin echoes a listed origin and otherwise falls back to the first
// configured one.
func corsOrigin(allowed []string, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	origin = strings.TrimSpace(origin)
	for _, candidate := range allowed {
		if candidate == "*" {
			return "*"
		}
		if origin != "" && candidate == origin {
			return origin
		}
	}
	return allowed[0]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodAllowed(w http.ResponseWriter, req *http.Request, method string) bool {
	if req.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}
