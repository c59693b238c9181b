// Package watcher reloads the pipeline registry when its YAML fixture file
// changes on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/pipeline"
)

const (
	component       = "fixture-watcher"
	defaultDebounce = 200 * time.Millisecond
)

type Target interface {
	Replace(items []pipeline.Pipeline)
}

type Service struct {
	path     string
	target   Target
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
	reporter heartbeat.Reporter
}

func New(path string, target Target, logger *slog.Logger) (*Service, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("fixture path is required")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve fixture path: %w", err)
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		path:     absolute,
		target:   target,
		logger:   logger,
		debounce: defaultDebounce,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// Reload reads the fixture and swaps the registry contents. A fixture that
// fails to parse leaves the registry as it was.
func (s *Service) Reload() (int, error) {
	items, err := pipeline.LoadFixture(s.path)
	if err != nil {
		return 0, err
	}
	s.target.Replace(items)
	return len(items), nil
}

// Start watches the fixture's directory so editors that replace the file
// through a rename are still seen.
func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	dir := filepath.Dir(s.path)
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch path %s: %w", dir, err)
	}
	if s.reporter != nil {
		s.reporter.Beat(component, "watching "+filepath.Base(s.path))
	}
	s.logger.Info("fixture watcher started", "path", s.path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if s.reporter != nil {
				s.reporter.Stopped(component, "stopped")
			}
			s.logger.Info("fixture watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if s.relevant(event) {
				pending = time.After(s.debounce)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		case <-pending:
			pending = nil
			s.reload()
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (s *Service) reload() {
	count, err := s.Reload()
	if err != nil {
		s.logger.Error("fixture reload failed", "path", s.path, "error", err)
		if s.reporter != nil {
			s.reporter.Degrade(component, "fixture reload failed", err)
		}
		return
	}
	s.logger.Info("fixture reloaded", "path", s.path, "pipelines", count)
	if s.reporter != nil {
		s.reporter.Beat(component, fmt.Sprintf("loaded %d pipelines", count))
	}
}
