package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/pipeline"
)

type fakeRunSource struct {
	items []pipeline.Pipeline
	err   error
}

func (f fakeRunSource) ListWorkflowRuns(ctx context.Context, owner, repo string, limit int) ([]pipeline.Pipeline, error) {
	return f.items, f.err
}

func TestSyncOnceReplacesRegistry(t *testing.T) {
	registry := pipeline.NewRegistry(pipeline.DefaultPipelines()...)
	source := fakeRunSource{items: []pipeline.Pipeline{{ID: "101", Name: "CI", Status: pipeline.StatusSuccess}}}
	syncer, err := NewSyncer(source, registry, SyncConfig{Owner: "acme", Repo: "api", Schedule: "*/5 * * * *"}, nil)
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}

	count, err := syncer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("sync once: %v", err)
	}
	if count != 1 || registry.Len() != 1 {
		t.Fatalf("expected registry replaced with one pipeline, got count=%d len=%d", count, registry.Len())
	}
}

func TestSyncOnceKeepsRegistryOnEmptyResult(t *testing.T) {
	registry := pipeline.NewRegistry(pipeline.DefaultPipelines()...)
	syncer, _ := NewSyncer(fakeRunSource{}, registry, SyncConfig{Owner: "acme", Repo: "api"}, nil)

	if _, err := syncer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync once: %v", err)
	}
	if registry.Len() != 3 {
		t.Fatalf("expected registry untouched, got %d", registry.Len())
	}
}

func TestNewSyncerRejectsBadSchedule(t *testing.T) {
	if _, err := NewSyncer(fakeRunSource{}, pipeline.NewRegistry(), SyncConfig{Schedule: "every minute"}, nil); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStartDisabledWithoutRepository(t *testing.T) {
	beats := heartbeat.NewRegistry()
	syncer, _ := NewSyncer(fakeRunSource{err: errors.New("unused")}, pipeline.NewRegistry(), SyncConfig{}, nil)
	syncer.SetHeartbeatReporter(beats)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := syncer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	snapshot := beats.Snapshot(0)
	if len(snapshot.Components) != 1 || snapshot.Components[0].State != heartbeat.StateDisabled {
		t.Fatalf("expected disabled component, got %+v", snapshot.Components)
	}
}

func TestStartDegradesOnSyncError(t *testing.T) {
	beats := heartbeat.NewRegistry()
	syncer, _ := NewSyncer(fakeRunSource{err: errors.New("boom")}, pipeline.NewRegistry(), SyncConfig{Owner: "acme", Repo: "api", Schedule: "@every 1h"}, nil)
	syncer.SetHeartbeatReporter(beats)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = syncer.Start(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	degraded := false
	for time.Now().Before(deadline) {
		snapshot := beats.Snapshot(0)
		if len(snapshot.Components) == 1 && snapshot.Components[0].State == heartbeat.StateDegraded {
			degraded = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	if !degraded {
		t.Fatal("expected degraded heartbeat after sync error")
	}
}
