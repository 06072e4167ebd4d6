package mention

import (
	"reflect"
	"strings"
	"testing"
)

func rosterLookup(users ...string) Lookup {
	canon := make(map[string]string, len(users))
	for _, u := range users {
		canon[strings.ToLower(u)] = u
	}
	return func(candidate string) (string, bool) {
		u, ok := canon[strings.ToLower(candidate)]
		return u, ok
	}
}

func TestProcess(t *testing.T) {
	lookup := rosterLookup("alice", "Bob")

	tests := []struct {
		name          string
		content       string
		wantMentioned []string
		wantContains  []string
	}{
		{
			name:          "single mention",
			content:       "hey @alice, ping",
			wantMentioned: []string{"alice"},
			wantContains:  []string{`data-user="alice"`, `@alice</span>`},
		},
		{
			name:          "case-insensitive resolution",
			content:       "cc @BOB",
			wantMentioned: []string{"Bob"},
			wantContains:  []string{`data-user="Bob"`},
		},
		{
			name:          "unknown user left as text",
			content:       "hi @nobody",
			wantMentioned: nil,
			wantContains:  []string{"hi @nobody"},
		},
		{
			name:          "duplicates collapse",
			content:       "@alice @alice @ALICE",
			wantMentioned: []string{"alice"},
		},
		{
			name:          "multiple users in order",
			content:       "@bob then @alice",
			wantMentioned: []string{"Bob", "alice"},
		},
		{
			// The pattern matches "@example" inside the address, but no such
			// user exists, so the text is untouched.
			name:          "address-like token without matching user",
			content:       "plain text with email@example.com",
			wantMentioned: nil,
			wantContains:  []string{"plain text with email@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mentioned := Process(tt.content, lookup)
			if !reflect.DeepEqual(mentioned, tt.wantMentioned) {
				t.Fatalf("mentioned = %v, want %v", mentioned, tt.wantMentioned)
			}
			for _, sub := range tt.wantContains {
				if !strings.Contains(got, sub) {
					t.Fatalf("output %q missing %q", got, sub)
				}
			}
		})
	}
}
