package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, householdID int64) *Client {
	return &Client{
		hub:         hub,
		conn:        nil,
		householdID: householdID,
		send:        make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 0)
	c2 := mockClient(hub, 0)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 0)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 0)
	c2 := mockClient(hub, 0)
	hub.Register(c1)
	hub.Register(c2)

	msg := NewMessage("product", "created", 42, map[string]any{"product_id": "p-1"})
	hub.Broadcast(msg)

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "product_created" {
				t.Errorf("expected type product_created, got %s", got.Type)
			}
			if got.Entity != "product" {
				t.Errorf("expected entity product, got %s", got.Entity)
			}
			if got.HouseholdID != 42 {
				t.Errorf("expected household 42, got %d", got.HouseholdID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastScopedToHousehold(t *testing.T) {
	hub := NewHub(slog.Default())

	mine := mockClient(hub, 1)
	other := mockClient(hub, 2)
	all := mockClient(hub, 0)
	hub.Register(mine)
	hub.Register(other)
	hub.Register(all)

	hub.Broadcast(NewMessage("member", "joined", 1, nil))

	select {
	case <-mine.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("scoped client did not receive its household's event")
	}
	select {
	case <-all.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("unscoped client did not receive the event")
	}
	select {
	case <-other.send:
		t.Fatal("client for household 2 received household 1's event")
	default:
	}

	hub.Unregister(mine)
	hub.Unregister(other)
	hub.Unregister(all)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	msg := NewMessage("household", "created", 1, nil)
	hub.Broadcast(msg)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 0)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", int64(i), nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", 999, nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("invitation", "created", 5, nil)
	if msg.Type != "invitation_created" {
		t.Errorf("expected type invitation_created, got %s", msg.Type)
	}
	if msg.Entity != "invitation" {
		t.Errorf("expected entity invitation, got %s", msg.Entity)
	}
	if msg.Action != "created" {
		t.Errorf("expected action created, got %s", msg.Action)
	}
	if msg.HouseholdID != 5 {
		t.Errorf("expected household 5, got %d", msg.HouseholdID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, 0)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", 0, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
