// Package session holds the client-side state of a Connectra session: the
// chat synchronization controller and the presence/typing tracker. Both
// consume the same push-channel event stream and share one Session object,
// which owns active-chat transitions; Presence owns the roster and the
// typing set.
package session

import (
	"context"
	"sync"

	"github.com/connectra/internal/model"
)

// API is the REST collaborator contract the controller depends on. The
// server is the sole authority on message ids and ordering; SendMessage is
// fire-and-forget; the authoritative copy arrives later on the push channel.
type API interface {
	Users(ctx context.Context) ([]model.User, error)
	ChatHistory(ctx context.Context, chatID string) ([]model.Message, error)
	SendMessage(ctx context.Context, chatID, content string) error
	CreateDM(ctx context.Context, participant string) (chatID string, err error)
}

// Emitter produces client events on the push channel. Implemented by ws.Conn.
type Emitter interface {
	JoinChat(chatID string)
	LeaveChat(chatID string)
	Typing(chatID string)
	StopTyping(chatID string)
}

// Renderer is the render surface for the chat view. The session guarantees
// AppendMessage is called at most once per (chat view, message id); the
// renderer places appended messages in stream order, before any visible
// typing indicator.
type Renderer interface {
	RenderHistory(chatID string, msgs []model.Message)
	AppendMessage(chatID string, msg model.Message)
	SetTypingVisible(chatID string, visible bool)
	RenderRoster(users []model.User)
}

// Input abstracts the message input field so the controller can clear it
// optimistically and restore it on transport failure.
type Input interface {
	Value() string
	SetValue(text string)
}

// NotificationKind keys the notification-dispatch callback.
type NotificationKind string

const (
	NotifyMention       NotificationKind = "mention"
	NotifyDirectMessage NotificationKind = "direct_message"
	NotifyGroupMessage  NotificationKind = "group_message"
)

// Notifier dispatches a user-facing notification. Implementations own the
// permission state: a recorded denial makes Notify a no-op for the rest of
// the session.
type Notifier interface {
	Notify(kind NotificationKind, fromUser, message, chatID string)
}

// Session is the per-page client state. All exported methods are safe for
// concurrent use; handlers run to completion, mirroring the event-driven
// execution model of the rendering environment.
type Session struct {
	username string
	api      API
	emitter  Emitter
	renderer Renderer
	notifier Notifier
	input    Input
	presence *Presence

	mu         sync.Mutex
	activeChat string
	// generation increments per OpenChat; a history fetch whose generation
	// no longer matches the current one is stale and its result discarded.
	generation uint64
	// rendered tracks message ids present on the render surface per chat
	// view, independent of the renderer itself.
	rendered map[string]map[string]struct{}
	recent   map[string]model.ChatSummary
	// focused mirrors whether the user is actively viewing the app; it
	// gates direct/group notifications but never mentions.
	focused bool
}

// New creates a Session for username. notifier may be nil (notifications
// disabled).
func New(username string, api API, emitter Emitter, renderer Renderer, notifier Notifier, input Input) *Session {
	return &Session{
		username: username,
		api:      api,
		emitter:  emitter,
		renderer: renderer,
		notifier: notifier,
		input:    input,
		presence: newPresence(username, emitter),
		rendered: make(map[string]map[string]struct{}),
		recent:   make(map[string]model.ChatSummary),
		focused:  true,
	}
}

// Presence returns the presence/typing tracker bound to this session.
func (s *Session) Presence() *Presence { return s.presence }

// ActiveChat returns the chat id the view currently renders.
func (s *Session) ActiveChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChat
}

// SetFocused records whether the user is actively viewing the app.
func (s *Session) SetFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

// RecentChats returns the recent-chats summary, one entry per chat that has
// seen traffic this session.
func (s *Session) RecentChats() []model.ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatSummary, 0, len(s.recent))
	for _, c := range s.recent {
		out = append(out, c)
	}
	return out
}
