package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/pipeline"
)

const syncComponent = "github-sync"

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type RunSource interface {
	ListWorkflowRuns(ctx context.Context, owner, repo string, limit int) ([]pipeline.Pipeline, error)
}

type Target interface {
	Replace(items []pipeline.Pipeline)
}

type SyncConfig struct {
	Owner    string
	Repo     string
	Limit    int
	Schedule string
}

// Syncer refreshes the pipeline registry from one repository's workflow runs
// on a cron schedule.
type Syncer struct {
	source   RunSource
	target   Target
	cfg      SyncConfig
	schedule cron.Schedule
	logger   *slog.Logger
	reporter heartbeat.Reporter
	now      func() time.Time
}

func NewSyncer(source RunSource, target Target, cfg SyncConfig, logger *slog.Logger) (*Syncer, error) {
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.Repo = strings.TrimSpace(cfg.Repo)
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	schedule, err := scheduleParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse sync schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		source:   source,
		target:   target,
		cfg:      cfg,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *Syncer) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// SyncOnce pulls the latest runs and replaces the registry contents. An empty
// result leaves the registry untouched.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	items, err := s.source.ListWorkflowRuns(ctx, s.cfg.Owner, s.cfg.Repo, s.cfg.Limit)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	s.target.Replace(items)
	return len(items), nil
}

func (s *Syncer) Start(ctx context.Context) error {
	if s.source == nil || s.target == nil || s.cfg.Owner == "" || s.cfg.Repo == "" {
		if s.reporter != nil {
			s.reporter.Disabled(syncComponent, "repository not configured")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting(syncComponent, "started")
	}
	s.logger.Info("github sync started", "repo", s.cfg.Owner+"/"+s.cfg.Repo, "schedule", s.cfg.Schedule)
	s.tick(ctx)
	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if s.reporter != nil {
				s.reporter.Stopped(syncComponent, "stopped")
			}
			s.logger.Info("github sync stopped")
			return nil
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	count, err := s.SyncOnce(ctx)
	if err != nil {
		s.logger.Error("github sync failed", "error", err)
		if s.reporter != nil {
			s.reporter.Degrade(syncComponent, "sync failed", err)
		}
		return
	}
	if s.reporter != nil {
		s.reporter.Beat(syncComponent, fmt.Sprintf("synced %d runs", count))
	}
}
