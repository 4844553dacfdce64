package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/launchkit/polarbridge/internal/models"
)

func TestInMemoryStore_Users(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	got, err := s.GetUserByToken(ctx, "user_42")
	if err != nil {
		t.Fatalf("GetUserByToken: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown user, got %+v", got)
	}

	if err := s.UpsertUser(ctx, models.User{TokenIdentifier: "user_42", Email: "a@b.c"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	got, err = s.GetUserByToken(ctx, "user_42")
	if err != nil || got == nil {
		t.Fatalf("expected user, got %v err %v", got, err)
	}
	if got.Email != "a@b.c" {
		t.Errorf("expected email a@b.c, got %s", got.Email)
	}

	// Upsert keeps the original creation time
	created := got.CreatedAt
	if err := s.UpsertUser(ctx, models.User{TokenIdentifier: "user_42", Email: "new@b.c"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	got, _ = s.GetUserByToken(ctx, "user_42")
	if got.Email != "new@b.c" {
		t.Errorf("expected refreshed email, got %s", got.Email)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt preserved across upsert")
	}
}

func TestInMemoryStore_SubscriptionLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	sub := models.Subscription{
		PolarID: "sub_1",
		UserID:  "user_42",
		Status:  "active",
		Amount:  1000,
	}
	if err := s.UpsertSubscription(ctx, sub); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}

	byPolar, err := s.GetSubscriptionByPolarID(ctx, "sub_1")
	if err != nil || byPolar == nil {
		t.Fatalf("expected subscription, got %v err %v", byPolar, err)
	}

	byUser, err := s.GetSubscriptionByUserID(ctx, "user_42")
	if err != nil || byUser == nil || byUser.PolarID != "sub_1" {
		t.Fatalf("expected subscription for user, got %v err %v", byUser, err)
	}

	status := "canceled"
	canceledAt := int64(1705276800000)
	if err := s.UpdateSubscription(ctx, "sub_1", models.SubscriptionPatch{
		Status:     &status,
		CanceledAt: &canceledAt,
	}); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	byPolar, _ = s.GetSubscriptionByPolarID(ctx, "sub_1")
	if byPolar.Status != "canceled" || byPolar.CanceledAt == nil || *byPolar.CanceledAt != canceledAt {
		t.Errorf("patch not applied: %+v", byPolar)
	}
	if byPolar.Amount != 1000 {
		t.Errorf("untouched field changed: %d", byPolar.Amount)
	}
}

func TestInMemoryStore_UpdateMissingIsNoOp(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	status := "active"
	if err := s.UpdateSubscription(ctx, "sub_missing", models.SubscriptionPatch{Status: &status}); err != nil {
		t.Fatalf("expected no error for missing target, got %v", err)
	}
	if sub, _ := s.GetSubscriptionByPolarID(ctx, "sub_missing"); sub != nil {
		t.Errorf("no record should have been created: %+v", sub)
	}
}

func TestInMemoryStore_UpsertIsIdempotentPerPolarID(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first := models.Subscription{PolarID: "sub_1", UserID: "user_42", Status: "active"}
	if err := s.UpsertSubscription(ctx, first); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	second := first
	second.Amount = 2000
	if err := s.UpsertSubscription(ctx, second); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}

	sub, _ := s.GetSubscriptionByPolarID(ctx, "sub_1")
	if sub.Amount != 2000 {
		t.Errorf("expected replacement on duplicate polarId, got %+v", sub)
	}
	if len(s.subOrder) != 1 {
		t.Errorf("expected a single record per polarId, got %d", len(s.subOrder))
	}
}

func TestInMemoryStore_WebhookLedger(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		err := s.InsertWebhookEvent(ctx, models.WebhookEvent{
			ID:           id,
			Type:         "subscription.created",
			PolarEventID: "sub_1",
			Data:         json.RawMessage(`{}`),
		})
		if err != nil {
			t.Fatalf("InsertWebhookEvent: %v", err)
		}
	}

	events, err := s.ListWebhookEvents(ctx, 2)
	if err != nil {
		t.Fatalf("ListWebhookEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "evt_3" {
		t.Errorf("expected newest first, got %s", events[0].ID)
	}

	all, _ := s.ListWebhookEvents(ctx, 0)
	if len(all) != 3 {
		t.Errorf("expected full ledger with limit 0, got %d", len(all))
	}
}

func TestInMemoryStore_Health(t *testing.T) {
	if err := NewInMemoryStore().Health(context.Background()); err != nil {
		t.Errorf("expected nil health, got %v", err)
	}
}
