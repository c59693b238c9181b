package store

import (
	"context"
	"testing"
)

func TestActionEventsRecordAndList(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	for _, action := range []string{"retry", "Rollback", "escalate"} {
		if _, err := sqlStore.CreateActionEvent(ctx, CreateActionEventInput{
			PipelineID: "backend-api",
			Action:     action,
			Success:    true,
			Message:    "ok",
			Source:     "HTTP",
		}); err != nil {
			t.Fatalf("create action event: %v", err)
		}
	}
	if _, err := sqlStore.CreateActionEvent(ctx, CreateActionEventInput{
		PipelineID: "frontend-deploy",
		Action:     "retry",
		Success:    false,
	}); err != nil {
		t.Fatalf("create action event: %v", err)
	}

	all, err := sqlStore.ListActionEvents(ctx, ListActionEventsInput{})
	if err != nil {
		t.Fatalf("list action events: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	if all[0].PipelineID != "frontend-deploy" || all[0].Success {
		t.Fatalf("expected newest event first, got %+v", all[0])
	}

	filtered, err := sqlStore.ListActionEvents(ctx, ListActionEventsInput{PipelineID: "backend-api", Action: "ROLLBACK"})
	if err != nil {
		t.Fatalf("list filtered events: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Action != "rollback" || filtered[0].Source != "http" {
		t.Fatalf("unexpected filtered events: %+v", filtered)
	}
}

func TestActionEventRequiresFields(t *testing.T) {
	sqlStore := newTestStore(t)
	if _, err := sqlStore.CreateActionEvent(context.Background(), CreateActionEventInput{Action: "retry"}); err == nil {
		t.Fatal("expected error for missing pipeline id")
	}
}
