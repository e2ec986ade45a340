package store

import (
	"testing"

	"streamhub/internal/model"
)

func TestPushSubscriptionUpsertByEndpoint(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewPushStore(db)

	first, err := s.CreateSubscription(user.ID, "https://push.example/ep1", "p-old", "a-old", model.DeviceDesktop)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	second, err := s.CreateSubscription(user.ID, "https://push.example/ep1", "p-new", "a-new", model.DeviceMobile)
	if err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-subscribe created a new row: id %d vs %d", second.ID, first.ID)
	}
	if second.P256dhKey != "p-new" {
		t.Errorf("p256dh = %q, want refreshed key", second.P256dhKey)
	}

	subs, err := s.ListByUser(user.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
}

func TestPushDeleteByEndpointScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice@example.com", "alice")
	bob := createTestUser(t, db, "bob@example.com", "bob")
	s := NewPushStore(db)

	if _, err := s.CreateSubscription(alice.ID, "https://push.example/alice-1", "p", "a", model.DeviceDesktop); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateSubscription(alice.ID, "https://push.example/alice-2", "p", "a", model.DeviceMobile); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bob cannot remove Alice's subscription
	if err := s.DeleteByEndpoint(bob.ID, "https://push.example/alice-1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ := s.ListByUser(alice.ID)
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions after foreign delete, got %d", len(subs))
	}

	// Alice removes exactly one device
	if err := s.DeleteByEndpoint(alice.ID, "https://push.example/alice-1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ = s.ListByUser(alice.ID)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
	if subs[0].Endpoint != "https://push.example/alice-2" {
		t.Errorf("wrong subscription deleted: remaining %s", subs[0].Endpoint)
	}
}

func TestNotificationPreferenceDefaultEnabled(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewPushStore(db)

	enabled, err := s.IsPreferenceEnabled(user.ID, model.NotifTypeStreamLive)
	if err != nil {
		t.Fatalf("check preference: %v", err)
	}
	if !enabled {
		t.Error("expected default-enabled when no record exists")
	}

	if err := s.SetPreference(user.ID, model.NotifTypeStreamLive, false); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	enabled, err = s.IsPreferenceEnabled(user.ID, model.NotifTypeStreamLive)
	if err != nil {
		t.Fatalf("check preference: %v", err)
	}
	if enabled {
		t.Error("expected disabled after opt-out")
	}

	// Upsert flips it back
	if err := s.SetPreference(user.ID, model.NotifTypeStreamLive, true); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	enabled, _ = s.IsPreferenceEnabled(user.ID, model.NotifTypeStreamLive)
	if !enabled {
		t.Error("expected enabled after opt-in")
	}
}
