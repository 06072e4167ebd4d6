package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/connectra/internal/model"
)

type EventType string

// Server-to-client events.
const (
	EventNewMessage     EventType = "new_message"
	EventUserStatus     EventType = "user_status"
	EventUserTyping     EventType = "user_typing"
	EventUserStopTyping EventType = "user_stop_typing"
	EventMention        EventType = "mention_notification"
	EventError          EventType = "error"
)

// Client-to-server events.
const (
	EventJoinChat   EventType = "join_chat"
	EventLeaveChat  EventType = "leave_chat"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop_typing"
)

// ClientEvent is what the client sends to the server.
type ClientEvent struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`
}

// ServerEvent is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type ServerEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewMessagePayload carries a server-confirmed message.
type NewMessagePayload struct {
	ChatID  string        `json:"chat_id"`
	Message model.Message `json:"message"`
}

// UserStatusPayload is broadcast for online/offline transitions.
type UserStatusPayload struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// TypingPayload is relayed while a user is composing.
type TypingPayload struct {
	ChatID   string `json:"chat_id"`
	Username string `json:"username"`
}

// MentionPayload is sent to a mentioned user's personal room.
type MentionPayload struct {
	FromUser  string    `json:"from_user"`
	Message   string    `json:"message"`
	ChatID    string    `json:"chat_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives decoded server events. All methods are invoked from the
// connection's read pump, one event at a time.
type Handler interface {
	OnNewMessage(NewMessagePayload)
	OnUserStatus(UserStatusPayload)
	OnUserTyping(TypingPayload)
	OnUserStopTyping(TypingPayload)
	OnMention(MentionPayload)
}

// DispatchServerEvent decodes a raw server event and routes it to the handler.
// Unknown event types are ignored: the transport is free to grow events this
// client does not care about.
func DispatchServerEvent(raw []byte, h Handler) error {
	var env struct {
		Type    EventType       `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("ws: decode envelope: %w", err)
	}
	switch env.Type {
	case EventNewMessage:
		var p NewMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("ws: decode %s: %w", env.Type, err)
		}
		h.OnNewMessage(p)
	case EventUserStatus:
		var p UserStatusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("ws: decode %s: %w", env.Type, err)
		}
		h.OnUserStatus(p)
	case EventUserTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("ws: decode %s: %w", env.Type, err)
		}
		h.OnUserTyping(p)
	case EventUserStopTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("ws: decode %s: %w", env.Type, err)
		}
		h.OnUserStopTyping(p)
	case EventMention:
		var p MentionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("ws: decode %s: %w", env.Type, err)
		}
		h.OnMention(p)
	}
	return nil
}
