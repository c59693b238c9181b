package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Listener receives a snapshot of the registry after every change.
type Listener func([]Pipeline)

// Registry is the in-memory set of pipelines. All mutations are serialized
// and readers always receive copies.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	items     map[string]Pipeline
	listeners []Listener
}

func NewRegistry(seed ...Pipeline) *Registry {
	registry := &Registry{items: map[string]Pipeline{}}
	registry.load(seed)
	return registry
}

func (r *Registry) load(items []Pipeline) {
	r.order = make([]string, 0, len(items))
	r.items = make(map[string]Pipeline, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		item.ID = id
		if _, exists := r.items[id]; !exists {
			r.order = append(r.order, id)
		}
		r.items[id] = item
	}
}

func (r *Registry) List() []Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []Pipeline {
	results := make([]Pipeline, 0, len(r.order))
	for _, id := range r.order {
		results = append(results, r.items[id])
	}
	return results
}

func (r *Registry) Get(id string) (Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return Pipeline{}, ErrPipelineNotFound
	}
	return item, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Replace swaps the full registry contents, keeping the given order.
func (r *Registry) Replace(items []Pipeline) {
	r.mu.Lock()
	r.load(items)
	snapshot := r.snapshotLocked()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()
	notify(listeners, snapshot)
}

// Watch registers fn to be called after every mutation.
func (r *Registry) Watch(fn Listener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Apply runs an action against a pipeline. The pipeline lookup happens
// before the action name is validated.
func (r *Registry) Apply(request ActionRequest, now time.Time) (ActionResult, error) {
	id := strings.TrimSpace(request.PipelineID)

	r.mu.Lock()
	item, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return ActionResult{}, ErrPipelineNotFound
	}
	action, err := ParseAction(request.Action)
	if err != nil {
		r.mu.Unlock()
		return ActionResult{}, fmt.Errorf("%w: %q", err, strings.TrimSpace(request.Action))
	}

	stamp := Timestamp(now)
	var message string
	mutated := false
	switch action {
	case ActionRetry:
		item.Status = StatusRunning
		item.Stage = "testing"
		item.LastRun = stamp
		item.Error = ""
		mutated = true
		message = "Retry initiated for " + item.Name
	case ActionRollback:
		item.Status = StatusSuccess
		item.Stage = "deployment"
		item.Commit = RollbackCommit
		item.LastRun = stamp
		item.Error = ""
		mutated = true
		message = "Rollback completed for " + item.Name
	case ActionEscalate:
		message = "Issue escalated to DevOps team for " + item.Name
	}

	var snapshot []Pipeline
	var listeners []Listener
	if mutated {
		r.items[id] = item
		snapshot = r.snapshotLocked()
		listeners = append([]Listener(nil), r.listeners...)
	}
	r.mu.Unlock()

	if mutated {
		notify(listeners, snapshot)
	}
	return ActionResult{
		Success:    true,
		Message:    message,
		PipelineID: id,
		Action:     action,
		Timestamp:  stamp,
	}, nil
}

func notify(listeners []Listener, snapshot []Pipeline) {
	for _, listener := range listeners {
		copied := append([]Pipeline(nil), snapshot...)
		listener(copied)
	}
}
