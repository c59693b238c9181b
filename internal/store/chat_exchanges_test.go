package store

import (
	"context"
	"testing"
)

func TestChatExchanges(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if _, err := sqlStore.CreateChatExchange(ctx, CreateChatExchangeInput{
		ClientKey:    "10.0.0.1",
		Message:      "Hi there!",
		Reply:        "Hello!",
		Route:        "simple",
		Reason:       "default",
		ResponseType: "rule_based",
	}); err != nil {
		t.Fatalf("create chat exchange: %v", err)
	}
	if _, err := sqlStore.CreateChatExchange(ctx, CreateChatExchangeInput{
		ClientKey:    "10.0.0.2",
		Message:      "Analyze failure",
		Reply:        "**RETRY**",
		Route:        "complex",
		ResponseType: "workflow_success",
		PlanID:       "plan-1",
	}); err != nil {
		t.Fatalf("create chat exchange: %v", err)
	}

	mine, err := sqlStore.ListChatExchanges(ctx, "10.0.0.2", 10)
	if err != nil {
		t.Fatalf("list chat exchanges: %v", err)
	}
	if len(mine) != 1 || mine[0].PlanID != "plan-1" {
		t.Fatalf("unexpected exchanges: %+v", mine)
	}
	all, err := sqlStore.ListChatExchanges(ctx, "", 0)
	if err != nil {
		t.Fatalf("list all chat exchanges: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(all))
	}
	if _, err := sqlStore.CreateChatExchange(ctx, CreateChatExchangeInput{Message: "   "}); err == nil {
		t.Fatal("expected error for empty message")
	}
}
