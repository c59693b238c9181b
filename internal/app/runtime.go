package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/actions"
	"github.com/dwizi/devops-assistant/internal/chat"
	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/escalation"
	"github.com/dwizi/devops-assistant/internal/github"
	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/httpapi"
	"github.com/dwizi/devops-assistant/internal/llm"
	"github.com/dwizi/devops-assistant/internal/llm/promptpolicy"
	"github.com/dwizi/devops-assistant/internal/llm/providers"
	"github.com/dwizi/devops-assistant/internal/llm/safety"
	"github.com/dwizi/devops-assistant/internal/mcpserver"
	"github.com/dwizi/devops-assistant/internal/orchestrator"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
	"github.com/dwizi/devops-assistant/internal/stream"
	"github.com/dwizi/devops-assistant/internal/watcher"
	"github.com/dwizi/devops-assistant/internal/workflow"
)

func New(cfg config.Config, version string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	seed, err := loadSeed(cfg.FixturePath)
	if err != nil {
		return nil, err
	}
	registry := pipeline.NewRegistry(seed...)

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	runtime := &Runtime{
		cfg:      cfg,
		version:  version,
		logger:   logger,
		store:    sqlStore,
		registry: registry,
	}
	if cfg.HeartbeatEnabled {
		runtime.heartbeat = heartbeat.NewRegistry()
	}

	runtime.engine = orchestrator.New(cfg.DefaultConcurrency, logger.With("component", "orchestrator"))
	var notifier escalation.Notifier
	if strings.TrimSpace(cfg.EscalationWebhookURL) != "" {
		notifier = escalation.NewWebhookNotifier(cfg.EscalationWebhookURL, time.Duration(cfg.EscalationTimeoutSec)*time.Second)
	}
	runtime.escalations = escalation.NewService(sqlStore, runtime.engine, registry, notifier, logger.With("component", "escalation"))
	runtime.engine.SetExecutor(runtime.escalations)
	runtime.engine.SetRetryPolicy(orchestrator.RetryPolicy{
		MaxAttempts: cfg.EscalationMaxAttempts,
		Backoff:     time.Duration(cfg.EscalationRetryBackoffSec) * time.Second,
	})
	runtime.engine.SetObserver(newEscalationObserver(runtime.heartbeat, runtime.escalations, logger.With("component", "escalation-observer")))
	runtime.actions = actions.NewService(registry, sqlStore, runtime.escalations, logger.With("component", "actions"))

	runtime.hub = stream.NewHub(registry, logger.With("component", "stream"))
	registry.Watch(runtime.hub.PublishPipelines)

	var chatHandler httpapi.ChatHandler
	if cfg.ChatEnabled {
		service, err := buildChat(cfg, registry, sqlStore, logger)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		chatHandler = service
	}

	githubClient := github.NewClient(cfg.GitHubAPI, cfg.GitHubToken, 15*time.Second)
	if cfg.GitHubSyncEnabled {
		runtime.syncer, err = github.NewSyncer(githubClient, registry, github.SyncConfig{
			Owner:    cfg.GitHubRepoOwner,
			Repo:     cfg.GitHubRepoName,
			Limit:    cfg.GitHubRunLimit,
			Schedule: cfg.GitHubSyncSchedule,
		}, logger.With("component", "github-sync"))
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	}

	if strings.TrimSpace(cfg.FixturePath) != "" && cfg.WatchFixture {
		runtime.watcher, err = watcher.New(cfg.FixturePath, registry, logger.With("component", "fixture-watcher"))
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	}

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpHandler = mcpserver.New(registry, runtime.actions, version, logger.With("component", "mcp")).Handler()
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Version:             version,
		Store:               sqlStore,
		Registry:            registry,
		Actions:             runtime.actions,
		Chat:                chatHandler,
		GitHub:              githubClient,
		Stream:              runtime.hub,
		MCP:                 mcpHandler,
		Logger:              logger.With("component", "httpapi"),
		Heartbeat:           runtime.heartbeat,
		HeartbeatStaleAfter: staleAfter,
		Queue:               runtime.engine,
	})
	runtime.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if runtime.heartbeat != nil {
		aware := []heartbeatAware{}
		if runtime.watcher != nil {
			aware = append(aware, runtime.watcher)
		}
		if runtime.syncer != nil {
			aware = append(aware, runtime.syncer)
		}
		for _, component := range aware {
			component.SetHeartbeatReporter(runtime.heartbeat)
		}
		runtime.heartbeatMonitor = heartbeat.NewMonitor(runtime.heartbeat, heartbeat.MonitorConfig{
			Interval:     time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
			StaleAfter:   staleAfter,
			Logger:       logger.With("component", "heartbeat-monitor"),
			OnTransition: runtime.publishTransition,
		})
	}
	return runtime, nil
}

func loadSeed(fixturePath string) ([]pipeline.Pipeline, error) {
	if strings.TrimSpace(fixturePath) == "" {
		return pipeline.DefaultPipelines(), nil
	}
	items, err := pipeline.LoadFixture(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("load pipeline fixture: %w", err)
	}
	return items, nil
}

func buildChat(cfg config.Config, registry *pipeline.Registry, sqlStore *store.Store, logger *slog.Logger) (*chat.Service, error) {
	llmTimeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	base, err := providers.New(providers.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
		Timeout:  llmTimeout,
	}, logger.With("component", "llm"))
	if err != nil {
		return nil, err
	}

	// The workflow prompt already carries the pipeline context block, so the
	// agent responder is built without a pipeline source.
	var fast, agent llm.Responder
	if base != nil {
		fast = promptpolicy.New(base, registry, promptpolicy.Config{RunbookDir: cfg.RunbookDir})
		agent = promptpolicy.New(base, nil, promptpolicy.Config{RunbookDir: cfg.RunbookDir})
	}
	flow := workflow.New(registry, agent, sqlStore, workflow.Config{}, logger.With("component", "workflow"))

	limiter := safety.New(safety.Config{
		Enabled:            true,
		RateLimitPerWindow: cfg.ChatRateLimitPerWindow,
		RateLimitWindow:    time.Duration(cfg.ChatRateLimitWindowSec) * time.Second,
		TrustedClients:     cfg.TrustedChatClients(),
	})

	transcriptRoot := ""
	if cfg.TranscriptsEnabled {
		transcriptRoot = cfg.TranscriptRoot
	}
	return chat.New(registry, fast, flow, sqlStore, limiter, chat.Config{
		MaxWords:       cfg.LLMMaxWords,
		LLMTimeout:     llmTimeout,
		TranscriptRoot: transcriptRoot,
	}, logger.With("component", "chat")), nil
}

func (r *Runtime) publishTransition(_ context.Context, transition heartbeat.Transition) {
	message := transition.Message
	if transition.Error != "" {
		message = transition.Error
	}
	r.hub.Publish(stream.Event{
		Type:      stream.EventHealth,
		Component: transition.Component,
		State:     transition.ToState,
		Message:   message,
		Timestamp: pipeline.Timestamp(time.Now()),
	})
}
