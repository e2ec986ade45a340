package store

import (
	"testing"
	"time"
)

func TestSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewSubscriptionStore(db)

	first, err := s.Upsert(user.ID, "cus_1", "sub_1", "premium", "active", nil)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// One row per user; a second checkout replaces, not duplicates
	second, err := s.Upsert(user.ID, "cus_1", "sub_2", "premium", "active", nil)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same row, got ids %d and %d", first.ID, second.ID)
	}
	if second.StripeSubscriptionID != "sub_2" {
		t.Errorf("subscription id = %q, want sub_2", second.StripeSubscriptionID)
	}
}

func TestSubscriptionUpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewSubscriptionStore(db)

	if _, err := s.Upsert(user.ID, "cus_1", "sub_1", "premium", "active", nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if err := s.UpdateStatus("sub_1", "past_due", &periodEnd); err != nil {
		t.Fatalf("update status: %v", err)
	}

	sub, err := s.GetByStripeSubscription("sub_1")
	if err != nil {
		t.Fatalf("get by stripe subscription: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscription, got nil")
	}
	if sub.Status != "past_due" {
		t.Errorf("status = %q, want past_due", sub.Status)
	}
	if sub.CurrentPeriodEnd == nil {
		t.Error("expected period end to be set")
	}
}

func TestSubscriptionGetByUserMissing(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewSubscriptionStore(db)

	sub, err := s.GetByUser(user.ID)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	if sub != nil {
		t.Error("expected nil for user without subscription")
	}
}
