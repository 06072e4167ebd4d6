package memory

import (
	"context"
	"fmt"
	"testing"
)

func sub(endpoint string) []byte {
	return []byte(`{"endpoint":"` + endpoint + `","keys":{"p256dh":"k","auth":"a"}}`)
}

func TestAddListRemove(t *testing.T) {
	ctx := context.Background()
	c := New()

	if err := c.Add(ctx, "alice", sub("https://push/1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add(ctx, "alice", sub("https://push/2")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	subs, err := c.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}

	if subs, _ := c.List(ctx, "bob"); len(subs) != 0 {
		t.Fatalf("bob has %d subscriptions, want 0", len(subs))
	}

	if err := c.RemoveByEndpoint(ctx, "alice", "https://push/1"); err != nil {
		t.Fatalf("RemoveByEndpoint: %v", err)
	}
	subs, _ = c.List(ctx, "alice")
	if len(subs) != 1 || string(subs[0]) != string(sub("https://push/2")) {
		t.Fatalf("after remove: %v", subs)
	}

	// Removing an unknown endpoint is a no-op.
	if err := c.RemoveByEndpoint(ctx, "alice", "https://push/none"); err != nil {
		t.Fatalf("RemoveByEndpoint unknown: %v", err)
	}
	if subs, _ := c.List(ctx, "alice"); len(subs) != 1 {
		t.Fatalf("no-op remove changed the list: %v", subs)
	}
}

func TestAddCapsPerUser(t *testing.T) {
	ctx := context.Background()
	c := New()

	for i := 0; i < maxSubsPerUser+5; i++ {
		if err := c.Add(ctx, "alice", sub(fmt.Sprintf("https://push/%d", i))); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	subs, err := c.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != maxSubsPerUser {
		t.Fatalf("got %d subscriptions, want %d", len(subs), maxSubsPerUser)
	}
	// The oldest entries are the ones evicted.
	if string(subs[0]) != string(sub("https://push/5")) {
		t.Fatalf("oldest kept = %s", subs[0])
	}
}
