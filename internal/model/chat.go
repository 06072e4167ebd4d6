package model

import (
	"sort"
	"strings"
	"time"
)

type ChatType string

const (
	ChatTypeGlobal ChatType = "global"
	ChatTypeDirect ChatType = "direct"
)

// GlobalChatID is the well-known id of the global room.
const GlobalChatID = "global"

type Chat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ChatType     ChatType  `json:"type"`
	Participants []string  `json:"participants,omitempty"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatSummary is the recent-chats list entry.
type ChatSummary struct {
	ID          string   `json:"id"`
	ChatType    ChatType `json:"type"`
	Name        string   `json:"name,omitempty"`
	OtherUser   *User    `json:"other_user,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

// DirectChatID derives the deterministic chat id for a direct conversation:
// usernames are lowercased, spaces replaced with underscores, sorted, and
// joined as dm_<a>_<b>. Both participants compute the same id.
func DirectChatID(a, b string) string {
	norm := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), " ", "_")
	}
	p := []string{norm(a), norm(b)}
	sort.Strings(p)
	return "dm_" + p[0] + "_" + p[1]
}

// IsDirectChat reports whether the chat id names a direct conversation.
func IsDirectChat(chatID string) bool {
	return strings.HasPrefix(chatID, "dm_") || strings.HasPrefix(chatID, "direct_")
}
