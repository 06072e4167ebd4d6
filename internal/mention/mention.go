// Package mention extracts @username mentions from message content.
package mention

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`@(\w+)`)

// Lookup resolves a mention candidate to a canonical username; it returns
// false when no such user exists (unknown mentions are left as plain text).
type Lookup func(candidate string) (username string, ok bool)

// Process finds @username mentions in content, resolves them against lookup
// (case-insensitive) and wraps resolved ones in a mention span. It returns
// the marked-up content and the list of mentioned usernames.
func Process(content string, lookup Lookup) (string, []string) {
	var mentioned []string
	seen := make(map[string]struct{})

	out := pattern.ReplaceAllStringFunc(content, func(match string) string {
		candidate := strings.TrimPrefix(match, "@")
		username, ok := lookup(candidate)
		if !ok {
			return match
		}
		if _, dup := seen[username]; !dup {
			seen[username] = struct{}{}
			mentioned = append(mentioned, username)
		}
		return `<span class="mention" data-user="` + username + `">@` + username + `</span>`
	})

	return out, mentioned
}
