// Package heartbeat tracks the health of the long-running components of the
// service (HTTP server, escalation workers, GitHub sync, fixture watcher).
package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallUnknown = "unknown"
	OverallIdle    = "idle"
)

type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type entry struct {
	state     string
	message   string
	errorText string
	beatAt    time.Time
	updatedAt time.Time
}

// Registry is a Reporter that keeps the latest state of every component.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: map[string]entry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Starting(component, message string) {
	r.record(component, StateStarting, message, nil)
}

// Beat marks the component healthy and refreshes its liveness timestamp.
func (r *Registry) Beat(component, message string) {
	r.record(component, StateHealthy, message, nil)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.record(component, StateDegraded, message, err)
}

func (r *Registry) Disabled(component, message string) {
	r.record(component, StateDisabled, message, nil)
}

func (r *Registry) Stopped(component, message string) {
	r.record(component, StateStopped, message, nil)
}

// record replaces the component's state. Only beats move beatAt, except the
// first report, which seeds it so staleness counts from registration.
func (r *Registry) record(component, state, message string, err error) {
	name := componentName(component)
	if name == "" {
		return
	}
	next := entry{state: state, message: strings.TrimSpace(message), updatedAt: r.now()}
	if err != nil {
		next.errorText = strings.TrimSpace(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next.beatAt = r.entries[name].beatAt
	if state == StateHealthy || next.beatAt.IsZero() {
		next.beatAt = next.updatedAt
	}
	r.entries[name] = next
}

// Lookup returns one component's status without stale evaluation.
func (r *Registry) Lookup(component string) (ComponentStatus, bool) {
	name := componentName(component)
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.entries[name]
	if !ok {
		return ComponentStatus{}, false
	}
	return current.view(name, time.Time{}, 0), true
}

// Snapshot reports every component sorted by name. Healthy or starting
// components that have not beaten within staleAfter are reported stale. A
// zero staleAfter disables that check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	components := make([]ComponentStatus, 0, len(r.entries))
	for name, current := range r.entries {
		components = append(components, current.view(name, now, staleAfter))
	}
	r.mu.RUnlock()

	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(components),
		Components:      components,
	}
}

func (e entry) view(name string, now time.Time, staleAfter time.Duration) ComponentStatus {
	status := ComponentStatus{
		Name:          name,
		State:         e.state,
		BaseState:     e.state,
		Message:       e.message,
		Error:         e.errorText,
		UpdatedAtUnix: e.updatedAt.Unix(),
	}
	if !e.beatAt.IsZero() {
		status.LastBeatAtUnix = e.beatAt.Unix()
	}
	live := e.state == StateHealthy || e.state == StateStarting
	if staleAfter > 0 && live && now.Sub(e.beatAt) > staleAfter {
		status.State = StateStale
		status.Stale = true
	}
	return status
}

func componentName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func IsDegradedState(state string) bool {
	switch componentName(state) {
	case StateDegraded, StateStale:
		return true
	}
	return false
}

// severity orders states for the overall fold. Disabled and stopped
// components never raise it above idle.
var severity = map[string]int{
	StateHealthy:  1,
	StateStarting: 2,
	StateStale:    3,
	StateDegraded: 3,
}

func overall(components []ComponentStatus) string {
	if len(components) == 0 {
		return OverallUnknown
	}
	result, rank := OverallIdle, 0
	for _, component := range components {
		if level := severity[component.State]; level > rank {
			result, rank = component.State, level
		}
	}
	if result == StateStale {
		return StateDegraded
	}
	return result
}
