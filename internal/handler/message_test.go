package handler

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncatePushBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short passthrough", "hello", "hello"},
		{"exact limit passthrough", strings.Repeat("a", 120), strings.Repeat("a", 120)},
		{"long ascii", strings.Repeat("a", 200), strings.Repeat("a", 117) + "..."},
		{"two byte runes backs up to boundary", strings.Repeat("é", 100), strings.Repeat("é", 58) + "..."},
		{"four byte runes backs up to boundary", strings.Repeat("🙂", 40), strings.Repeat("🙂", 29) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePushBody(tt.in)
			if got != tt.want {
				t.Errorf("truncatePushBody = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncatePushBody produced invalid UTF-8: %q", got)
			}
		})
	}
}
