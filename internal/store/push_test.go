package store

import (
	"testing"

	"github.com/larderapp/larder/internal/database"
	"github.com/larderapp/larder/internal/model"
)

func setupPushTestDB(t *testing.T) (*PushStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := NewHouseholdStore(db)
	h, err := hs.CreateWithOwner("Home", false, "u1", "Alice")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewPushStore(db), h.ID
}

func TestSubscribeAndList(t *testing.T) {
	ps, hid := setupPushTestDB(t)

	sub, err := ps.Subscribe("u1", hid, "https://push.example/ep1", "p256dh", "auth", "Pixel")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Endpoint != "https://push.example/ep1" {
		t.Errorf("endpoint = %q", sub.Endpoint)
	}

	subs, err := ps.ListByHousehold(hid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
}

func TestSubscribeSameEndpointReplaces(t *testing.T) {
	ps, hid := setupPushTestDB(t)

	ps.Subscribe("u1", hid, "https://push.example/ep1", "old-key", "old-auth", "Pixel")
	sub, err := ps.Subscribe("u1", hid, "https://push.example/ep1", "new-key", "new-auth", "Pixel")
	if err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	if sub.P256dhKey != "new-key" {
		t.Errorf("p256dh = %q, want rotated key", sub.P256dhKey)
	}

	subs, _ := ps.ListByHousehold(hid)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription after re-subscribe, got %d", len(subs))
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	ps, hid := setupPushTestDB(t)

	ps.Subscribe("u1", hid, "https://push.example/ep1", "k", "a", "")
	if err := ps.DeleteByEndpoint("https://push.example/ep1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}

	subs, _ := ps.ListByHousehold(hid)
	if len(subs) != 0 {
		t.Errorf("expected 0 subscriptions, got %d", len(subs))
	}
}

func TestWasSentRecordSent(t *testing.T) {
	ps, hid := setupPushTestDB(t)

	sent, err := ps.WasSent(hid, model.NotifTypeExpiry, "expiry-1-2026-08-29")
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Error("expected not sent initially")
	}

	if err := ps.RecordSent(hid, model.NotifTypeExpiry, "expiry-1-2026-08-29"); err != nil {
		t.Fatalf("record sent: %v", err)
	}
	// Recording twice must not error.
	if err := ps.RecordSent(hid, model.NotifTypeExpiry, "expiry-1-2026-08-29"); err != nil {
		t.Fatalf("record sent again: %v", err)
	}

	sent, _ = ps.WasSent(hid, model.NotifTypeExpiry, "expiry-1-2026-08-29")
	if !sent {
		t.Error("expected sent after record")
	}
}
