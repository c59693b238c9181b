package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/devops-assistant/internal/heartbeat"
)

// backgroundService is one long-running piece of the runtime. A service with
// a nil run is reported disabled with the given reason.
type backgroundService struct {
	name      string
	monitored bool
	disabled  string
	run       func(ctx context.Context) error
}

const monitoredBeatInterval = 20 * time.Second

func (r *Runtime) services() []backgroundService {
	services := []backgroundService{
		{name: "orchestrator", monitored: true, run: r.engine.Start},
		{name: "api", monitored: true, run: r.serveHTTP},
		{name: "fixture-watcher", disabled: "no fixture file to watch"},
		{name: "github-sync", disabled: "github sync disabled"},
	}
	if r.watcher != nil {
		services[2].run = r.watcher.Start
	}
	if r.syncer != nil {
		services[3].run = r.syncer.Start
	}
	if r.heartbeatMonitor != nil {
		services = append(services, backgroundService{name: "heartbeat-monitor", run: r.heartbeatMonitor.Start})
	}
	return services
}

// Run starts every background service and blocks until ctx is cancelled or
// one of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("devops-assistant starting",
		"addr", r.cfg.HTTPAddr,
		"pipelines", r.registry.Len(),
		"llm_provider", r.cfg.LLMProvider,
	)
	reporter := r.reporter()
	if reporter != nil {
		reporter.Beat("runtime", "runtime loop started")
		reporter.Starting(escalationComponent, "waiting for escalations")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, service := range r.services() {
		switch {
		case service.run == nil:
			if r.heartbeat != nil {
				r.heartbeat.Disabled(service.name, service.disabled)
			}
		case service.monitored:
			group.Go(func() error {
				return runMonitored(groupCtx, reporter, service.name, monitoredBeatInterval, service.run)
			})
		default:
			group.Go(func() error {
				return service.run(groupCtx)
			})
		}
	}
	group.Go(func() error {
		<-groupCtx.Done()
		return r.Shutdown()
	})
	return group.Wait()
}

func (r *Runtime) serveHTTP(context.Context) error {
	err := r.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, giving in-flight requests ten seconds.
func (r *Runtime) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.httpServer.Shutdown(shutdownCtx)
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// runMonitored wraps run with heartbeat reporting: starting, a periodic beat
// while it runs, then stopped on a clean exit or degraded on failure.
func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	beatInterval time.Duration,
	run func(context.Context) error,
) error {
	if run == nil {
		return nil
	}
	if reporter == nil {
		return run(ctx)
	}
	reporter.Starting(component, "starting")
	reporter.Beat(component, "running")

	pulseCtx, stopPulse := context.WithCancel(ctx)
	if beatInterval > 0 {
		go pulse(pulseCtx, reporter, component, beatInterval)
	}
	err := run(ctx)
	stopPulse()

	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}

func pulse(ctx context.Context, reporter heartbeat.Reporter, component string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reporter.Beat(component, "running")
		}
	}
}

// reporter avoids handing a typed nil registry to runMonitored.
func (r *Runtime) reporter() heartbeat.Reporter {
	if r.heartbeat == nil {
		return nil
	}
	return r.heartbeat
}
