package hub

import (
	"encoding/json"
	"sync"
	"testing"
)

func testClient(h *Hub, roomID, userID uint64) *Client {
	return &Client{hub: h, roomID: roomID, userID: userID, send: make(chan []byte, sendBuffer)}
}

func TestPublishReachesRoomMembersOnly(t *testing.T) {
	h := New()
	a := testClient(h, 1, 10)
	b := testClient(h, 1, 11)
	other := testClient(h, 2, 12)
	for _, c := range []*Client{a, b, other} {
		h.register(c)
	}

	h.Publish(1, "message", map[string]string{"body": "hi"})

	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.send:
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			if env.Event != "message" {
				t.Errorf("event = %q, want message", env.Event)
			}
		default:
			t.Errorf("user %d received nothing", c.userID)
		}
	}
	select {
	case <-other.send:
		t.Error("client in another room received the event")
	default:
	}
}

func TestPresentDeduplicatesConnections(t *testing.T) {
	h := New()
	h.register(testClient(h, 1, 10))
	h.register(testClient(h, 1, 10)) // second tab, same user
	h.register(testClient(h, 1, 11))

	users := h.Present(1)
	if len(users) != 2 {
		t.Fatalf("present = %v, want two distinct users", users)
	}
	if len(h.Present(99)) != 0 {
		t.Error("empty room reports presence")
	}
}

// Broadcasts racing disconnects must never send on a channel the
// disconnect already closed.  Unbuffered send channels make every
// client "slow", so each Publish tries to drop both clients while the
// other goroutines are still delivering to them.
func TestConcurrentPublishAndDisconnect(t *testing.T) {
	h := New()
	for i := 0; i < 200; i++ {
		a := &Client{hub: h, roomID: 1, userID: 10, send: make(chan []byte)}
		b := &Client{hub: h, roomID: 1, userID: 11, send: make(chan []byte)}
		h.register(a)
		h.register(b)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Publish(1, "message", map[string]string{"body": "hi"})
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.unregister(a)
		}()
		wg.Wait()

		h.unregister(a)
		h.unregister(b)
	}

	if len(h.Present(1)) != 0 {
		t.Error("room not empty after all disconnects")
	}
}

func TestUnregisterCleansEmptyRoom(t *testing.T) {
	h := New()
	c := testClient(h, 1, 10)
	h.register(c)
	h.unregister(c)
	h.unregister(c) // idempotent

	if len(h.Present(1)) != 0 {
		t.Error("user still present after unregister")
	}
	h.mu.RLock()
	_, ok := h.rooms[1]
	h.mu.RUnlock()
	if ok {
		t.Error("empty room not removed")
	}
}
