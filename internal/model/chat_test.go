package model

import "testing"

func TestDirectChatID(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{name: "sorted lowercase", a: "alice", b: "bob", want: "dm_alice_bob"},
		{name: "order independent", a: "bob", b: "alice", want: "dm_alice_bob"},
		{name: "case folded", a: "Bob", b: "ALICE", want: "dm_alice_bob"},
		{name: "spaces become underscores", a: "Alice B", b: "bob", want: "dm_alice_b_bob"},
		{name: "same after normalization", a: "Bob Smith", b: "bob smith", want: "dm_bob_smith_bob_smith"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirectChatID(tt.a, tt.b); got != tt.want {
				t.Fatalf("DirectChatID(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
			// The two argument orders must agree.
			if got := DirectChatID(tt.b, tt.a); got != tt.want {
				t.Fatalf("DirectChatID(%q, %q) = %q, want %q", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestIsDirectChat(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"dm_alice_bob", true},
		{"direct_legacy_id", true},
		{"global", false},
		{"", false},
		{"dmx_not_direct", false},
	}
	for _, tt := range tests {
		if got := IsDirectChat(tt.id); got != tt.want {
			t.Errorf("IsDirectChat(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMentionedBy(t *testing.T) {
	m := Message{Mentions: []string{"alice", "bob"}}
	if !m.MentionedBy("alice") {
		t.Error("alice should be mentioned")
	}
	if m.MentionedBy("carol") {
		t.Error("carol should not be mentioned")
	}
	var empty Message
	if empty.MentionedBy("alice") {
		t.Error("empty mention list matched")
	}
}
