package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/ws"
)

// OpenChat switches the active chat: leaves the previous chat's event stream,
// joins the new one, resets the typing set and performs a one-time history
// fetch. chatID must be a well-known or previously established id ("global"
// or a direct-chat id from CreateDM).
//
// History results are guarded by a generation counter: if another OpenChat
// happens while the fetch is in flight, the stale result is discarded and the
// newer view is left untouched.
func (s *Session) OpenChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	prev := s.activeChat
	s.activeChat = chatID
	s.generation++
	gen := s.generation
	// A fresh view starts with an empty rendered set; history repopulates it.
	s.rendered[chatID] = make(map[string]struct{})
	if sum, ok := s.recent[chatID]; ok {
		sum.UnreadCount = 0
		s.recent[chatID] = sum
	}
	s.mu.Unlock()

	if prev != "" && prev != chatID {
		s.emitter.LeaveChat(prev)
	}
	s.presence.resetTyping(chatID)
	s.renderer.SetTypingVisible(chatID, false)
	s.emitter.JoinChat(chatID)

	msgs, err := s.api.ChatHistory(ctx, chatID)
	if err != nil {
		// The previous render (if any) stays; nothing is torn down on a
		// failed or malformed fetch.
		return fmt.Errorf("open chat %s: %w", chatID, err)
	}

	s.mu.Lock()
	if s.generation != gen || s.activeChat != chatID {
		s.mu.Unlock()
		logger.Infof("discarding stale history for %s", chatID)
		return nil
	}
	set := s.rendered[chatID]
	for i := range msgs {
		set[msgs[i].ID] = struct{}{}
	}
	s.mu.Unlock()

	s.renderer.RenderHistory(chatID, msgs)
	return nil
}

// OpenDirectChat establishes (or reuses) the direct conversation with
// participant via the chat-creation collaborator, then opens it.
func (s *Session) OpenDirectChat(ctx context.Context, participant string) (string, error) {
	chatID, err := s.api.CreateDM(ctx, participant)
	if err != nil {
		return "", fmt.Errorf("create dm with %s: %w", participant, err)
	}
	if err := s.OpenChat(ctx, chatID); err != nil {
		return chatID, err
	}
	return chatID, nil
}

// SendMessage submits text to the active chat. Empty or whitespace-only input
// is a no-op: no network call, input untouched. The input is cleared before
// network confirmation; the message itself is never rendered locally; it
// appears only when the server's push echo arrives, so there is never a
// divergent optimistic copy to reconcile. On transport failure the original
// text is restored for manual retry.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s.mu.Lock()
	chatID := s.activeChat
	s.mu.Unlock()
	if chatID == "" {
		return fmt.Errorf("send message: no active chat")
	}

	s.input.SetValue("")

	if err := s.api.SendMessage(ctx, chatID, text); err != nil {
		s.input.SetValue(text)
		return fmt.Errorf("send message: %w", err)
	}
	// Sending ends the composing state immediately rather than waiting for
	// the idle window to elapse.
	s.presence.flushTyping()
	return nil
}

// OnNewMessage reconciles a pushed message with the active view. Delivery is
// at-least-once and unordered relative to the history fetch; the rendered-id
// set is the sole guard against double renders.
func (s *Session) OnNewMessage(p ws.NewMessagePayload) {
	msg := p.Message

	s.mu.Lock()
	active := s.activeChat
	focused := s.focused
	sum := s.recent[p.ChatID]
	sum.ID = p.ChatID
	if model.IsDirectChat(p.ChatID) {
		sum.ChatType = model.ChatTypeDirect
	} else {
		sum.ChatType = model.ChatTypeGlobal
	}
	sum.LastMessage = &msg
	if p.ChatID != active {
		sum.UnreadCount++
	}
	s.recent[p.ChatID] = sum

	if p.ChatID != active {
		s.mu.Unlock()
		s.notifyIfNeeded(msg, p.ChatID, focused)
		return
	}

	set := s.rendered[active]
	if set == nil {
		set = make(map[string]struct{})
		s.rendered[active] = set
	}
	if _, dup := set[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	set[msg.ID] = struct{}{}
	s.mu.Unlock()

	s.renderer.AppendMessage(p.ChatID, msg)
}

// notifyIfNeeded routes a background-chat message to the notifier: mentions
// always fire; direct messages fire when the chat isn't the active one (it
// never is here); group messages fire only while the user is away.
func (s *Session) notifyIfNeeded(msg model.Message, chatID string, focused bool) {
	if s.notifier == nil || msg.Username == s.username {
		return
	}
	body := msg.RawContent
	if body == "" {
		body = msg.Content
	}
	switch {
	case msg.MentionedBy(s.username):
		s.notifier.Notify(NotifyMention, msg.Username, body, chatID)
	case model.IsDirectChat(chatID):
		s.notifier.Notify(NotifyDirectMessage, msg.Username, body, chatID)
	case !focused:
		s.notifier.Notify(NotifyGroupMessage, msg.Username, body, chatID)
	}
}

// OnMention handles a directed mention notification from the push channel.
// Mentions bypass the activity gate entirely.
func (s *Session) OnMention(p ws.MentionPayload) {
	if s.notifier == nil || p.FromUser == s.username {
		return
	}
	s.notifier.Notify(NotifyMention, p.FromUser, p.Message, p.ChatID)
}

// OnUserStatus updates the roster and re-renders it on change.
func (s *Session) OnUserStatus(p ws.UserStatusPayload) {
	if s.presence.setOnline(p.Username, p.Online) {
		s.renderer.RenderRoster(s.presence.Roster())
	}
}

// OnUserTyping adds a remote typer; the indicator is visible iff the active
// chat's typing set is non-empty.
func (s *Session) OnUserTyping(p ws.TypingPayload) {
	if s.presence.remoteTyping(p.Username, p.ChatID) {
		s.renderer.SetTypingVisible(p.ChatID, s.presence.TypingVisible(p.ChatID))
	}
}

// OnUserStopTyping removes a remote typer.
func (s *Session) OnUserStopTyping(p ws.TypingPayload) {
	if s.presence.remoteStopTyping(p.Username, p.ChatID) {
		s.renderer.SetTypingVisible(p.ChatID, s.presence.TypingVisible(p.ChatID))
	}
}

// LoadRoster performs the initial roster fetch and renders it.
func (s *Session) LoadRoster(ctx context.Context) error {
	users, err := s.api.Users(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	s.presence.setRoster(users)
	s.renderer.RenderRoster(s.presence.Roster())
	return nil
}

var _ ws.Handler = (*Session)(nil)
