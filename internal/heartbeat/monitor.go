package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition)
}

// Monitor polls a Registry and reports state changes, including components
// going stale, which no Reporter call would surface on its own.
type Monitor struct {
	registry *Registry
	cfg      MonitorConfig
	last     map[string]string
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		registry: registry,
		cfg:      cfg,
		last:     map[string]string{},
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m.registry == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.cfg.Logger.Info("heartbeat monitor started", "interval", m.cfg.Interval.String(), "stale_after", m.cfg.StaleAfter.String())

	for {
		m.check(ctx)
		select {
		case <-ctx.Done():
			m.cfg.Logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// check compares the current snapshot with the previous one. The first
// sighting of a component only records its state.
func (m *Monitor) check(ctx context.Context) {
	snapshot := m.registry.Snapshot(m.cfg.StaleAfter)
	for _, component := range snapshot.Components {
		before, seen := m.last[component.Name]
		m.last[component.Name] = component.State
		if !seen || before == component.State {
			continue
		}
		transition := Transition{
			Component: component.Name,
			FromState: before,
			ToState:   component.State,
			Message:   component.Message,
			Error:     component.Error,
		}
		if IsDegradedState(transition.ToState) {
			m.cfg.Logger.Warn("component degraded", "component", transition.Component, "state", transition.ToState, "error", transition.Error)
		} else {
			m.cfg.Logger.Info("component state changed", "component", transition.Component, "from", transition.FromState, "to", transition.ToState)
		}
		if m.cfg.OnTransition != nil {
			m.cfg.OnTransition(ctx, transition)
		}
	}
}
