package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/devops-assistant/internal/actions"
	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/escalation"
	"github.com/dwizi/devops-assistant/internal/github"
	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/orchestrator"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
	"github.com/dwizi/devops-assistant/internal/stream"
	"github.com/dwizi/devops-assistant/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	version          string
	logger           *slog.Logger
	store            *store.Store
	registry         *pipeline.Registry
	engine           *orchestrator.Engine
	escalations      *escalation.Service
	actions          *actions.Service
	hub              *stream.Hub
	httpServer       *http.Server
	watcher          *watcher.Service
	syncer           *github.Syncer
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
