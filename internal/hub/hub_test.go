package hub

import (
	"context"
	"testing"

	"github.com/connectra/internal/ws"
)

// testClient builds a Client wired into the hub's maps directly, bypassing
// Register so no database or network is involved.
func testClient(h *Hub, username string) *Client {
	c := NewClient(h, nil, username)
	h.mu.Lock()
	if _, ok := h.clients[username]; !ok {
		h.clients[username] = make(map[*Client]struct{})
	}
	h.clients[username][c] = struct{}{}
	h.total++
	h.mu.Unlock()
	return c
}

func recvEvent(t *testing.T, c *Client) ws.ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	default:
		t.Fatalf("no event queued for %s", c.username)
		return ws.ServerEvent{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event for %s: %+v", c.username, ev)
	default:
	}
}

func TestJoinLeaveRoomBookkeeping(t *testing.T) {
	h := NewHub(nil, 10)
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")

	h.HandleEvent(context.Background(), alice, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "global"})
	h.HandleEvent(context.Background(), bob, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "global"})
	if got := len(h.roomMembers("global")); got != 2 {
		t.Fatalf("room members = %d, want 2", got)
	}

	h.HandleEvent(context.Background(), bob, ws.ClientEvent{Type: ws.EventLeaveChat, ChatID: "global"})
	if got := len(h.roomMembers("global")); got != 1 {
		t.Fatalf("room members after leave = %d, want 1", got)
	}

	h.HandleEvent(context.Background(), alice, ws.ClientEvent{Type: ws.EventLeaveChat, ChatID: "global"})
	h.mu.RLock()
	_, exists := h.rooms["global"]
	h.mu.RUnlock()
	if exists {
		t.Fatal("empty room not reclaimed")
	}
}

func TestTypingRelayExcludesSender(t *testing.T) {
	h := NewHub(nil, 10)
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	ctx := context.Background()

	h.HandleEvent(ctx, alice, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "global"})
	h.HandleEvent(ctx, bob, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "global"})

	h.HandleEvent(ctx, alice, ws.ClientEvent{Type: ws.EventTyping, ChatID: "global"})

	ev := recvEvent(t, bob)
	if ev.Type != ws.EventUserTyping {
		t.Fatalf("event type = %s, want %s", ev.Type, ws.EventUserTyping)
	}
	payload, ok := ev.Payload.(ws.TypingPayload)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if payload.Username != "alice" || payload.ChatID != "global" {
		t.Fatalf("payload = %+v", payload)
	}
	assertEmpty(t, alice)

	h.HandleEvent(ctx, alice, ws.ClientEvent{Type: ws.EventStopTyping, ChatID: "global"})
	if ev := recvEvent(t, bob); ev.Type != ws.EventUserStopTyping {
		t.Fatalf("event type = %s, want %s", ev.Type, ws.EventUserStopTyping)
	}
}

func TestTypingNotRelayedAcrossRooms(t *testing.T) {
	h := NewHub(nil, 10)
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	ctx := context.Background()

	h.HandleEvent(ctx, alice, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "global"})
	h.HandleEvent(ctx, bob, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "dm_bob_carol"})

	h.HandleEvent(ctx, alice, ws.ClientEvent{Type: ws.EventTyping, ChatID: "global"})
	assertEmpty(t, bob)
}

func TestBroadcastNewMessageReachesParticipantsOnce(t *testing.T) {
	h := NewHub(nil, 10)
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	carol := testClient(h, "carol")
	ctx := context.Background()

	// bob is in the room; carol is a participant who has not joined it.
	h.HandleEvent(ctx, alice, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "dm_alice_bob"})
	h.HandleEvent(ctx, bob, ws.ClientEvent{Type: ws.EventJoinChat, ChatID: "dm_alice_bob"})

	h.BroadcastNewMessage(
		ws.NewMessagePayload{ChatID: "dm_alice_bob"},
		[]string{"alice", "bob", "carol"},
	)

	for _, c := range []*Client{alice, bob, carol} {
		ev := recvEvent(t, c)
		if ev.Type != ws.EventNewMessage {
			t.Fatalf("%s got %s, want %s", c.username, ev.Type, ws.EventNewMessage)
		}
		// Room membership plus the participant list must not double-deliver.
		assertEmpty(t, c)
	}
}

func TestIsOnline(t *testing.T) {
	h := NewHub(nil, 10)
	testClient(h, "alice")
	if !h.IsOnline("alice") {
		t.Fatal("alice should be online")
	}
	if h.IsOnline("bob") {
		t.Fatal("bob should be offline")
	}
}
