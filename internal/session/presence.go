package session

import (
	"sync"
	"time"

	"github.com/connectra/internal/model"
)

const (
	// typingIdleWindow is the debounce window for local input: if no further
	// input arrives within it, the trailing stop_typing fires.
	typingIdleWindow = 1000 * time.Millisecond
	// typingExpiry reclaims a remote typing flag whose stop_typing was lost
	// (peer tab closed mid-compose). Entries are swept lazily on access.
	typingExpiry = 10 * time.Second
)

// Presence tracks two independent pieces of ephemeral state: global per-user
// online/offline, and "who is typing now" for the active chat. It is driven
// purely by inbound events plus local input activity; it owns the roster and
// the typing set.
type Presence struct {
	username string
	emitter  Emitter

	mu     sync.Mutex
	roster map[string]*model.User
	order  []string

	// typing tracks remote composers for activeChat only; values are the
	// last refresh time, used for staleness sweeps. The local user is never
	// a member: self-typing is transmitted, not displayed.
	activeChat string
	typing     map[string]time.Time

	idleWindow time.Duration
	expiry     time.Duration
	composing  bool
	timer      *time.Timer
	timerGen   uint64
	now        func() time.Time
}

func newPresence(username string, emitter Emitter) *Presence {
	return &Presence{
		username:   username,
		emitter:    emitter,
		roster:     make(map[string]*model.User),
		typing:     make(map[string]time.Time),
		idleWindow: typingIdleWindow,
		expiry:     typingExpiry,
		now:        time.Now,
	}
}

// setRoster replaces the roster from an initial fetch, keeping server order.
func (p *Presence) setRoster(users []model.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roster = make(map[string]*model.User, len(users))
	p.order = p.order[:0]
	for i := range users {
		u := users[i]
		p.roster[u.Username] = &u
		p.order = append(p.order, u.Username)
	}
}

// setOnline mutates the matching user's online flag in place and reports
// whether anything changed. Unknown usernames are ignored; the roster never
// grows implicitly and never shrinks during a session.
func (p *Presence) setOnline(username string, online bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.roster[username]
	if !ok || u.Online == online {
		return false
	}
	u.Online = online
	return true
}

// Roster returns a snapshot of the known users in server order.
func (p *Presence) Roster() []model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.User, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, *p.roster[name])
	}
	return out
}

// Online reports the live status for username (false if unknown).
func (p *Presence) Online(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.roster[username]
	return ok && u.Online
}

// InputChanged is called on every keystroke-level input event. The first
// event of a composing burst emits typing; every event re-arms the idle
// timer, and only the trailing edge emits stop_typing.
func (p *Presence) InputChanged() {
	p.mu.Lock()
	chat := p.activeChat
	if chat == "" {
		p.mu.Unlock()
		return
	}
	first := !p.composing
	p.composing = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timerGen++
	gen := p.timerGen
	p.timer = time.AfterFunc(p.idleWindow, func() { p.idleElapsed(gen) })
	p.mu.Unlock()

	if first {
		p.emitter.Typing(chat)
	}
}

func (p *Presence) idleElapsed(gen uint64) {
	p.mu.Lock()
	// A newer input event re-armed the timer; this firing is obsolete.
	if gen != p.timerGen || !p.composing {
		p.mu.Unlock()
		return
	}
	p.composing = false
	chat := p.activeChat
	p.mu.Unlock()
	p.emitter.StopTyping(chat)
}

// flushTyping ends the composing state immediately (message sent).
func (p *Presence) flushTyping() {
	p.mu.Lock()
	if !p.composing {
		p.mu.Unlock()
		return
	}
	p.composing = false
	p.timerGen++
	if p.timer != nil {
		p.timer.Stop()
	}
	chat := p.activeChat
	p.mu.Unlock()
	p.emitter.StopTyping(chat)
}

// resetTyping rebinds the typing set to a newly opened chat, emptying it.
func (p *Presence) resetTyping(chatID string) {
	p.mu.Lock()
	p.activeChat = chatID
	p.typing = make(map[string]time.Time)
	p.composing = false
	p.timerGen++
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
}

// remoteTyping records a remote composer if the event targets the active
// chat; events for other chats and self-echoes are dropped.
func (p *Presence) remoteTyping(username, chatID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chatID != p.activeChat || username == p.username {
		return false
	}
	p.typing[username] = p.now()
	return true
}

// remoteStopTyping removes a remote composer.
func (p *Presence) remoteStopTyping(username, chatID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chatID != p.activeChat {
		return false
	}
	if _, ok := p.typing[username]; !ok {
		return false
	}
	delete(p.typing, username)
	return true
}

// TypingUsers returns who is composing in chatID (empty unless chatID is the
// active chat). Flags whose stop_typing was lost expire after typingExpiry.
func (p *Presence) TypingUsers(chatID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chatID != p.activeChat {
		return nil
	}
	p.sweepLocked()
	out := make([]string, 0, len(p.typing))
	for name := range p.typing {
		out = append(out, name)
	}
	return out
}

// TypingVisible reports whether the typing indicator should show for chatID.
func (p *Presence) TypingVisible(chatID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chatID != p.activeChat {
		return false
	}
	p.sweepLocked()
	return len(p.typing) > 0
}

func (p *Presence) sweepLocked() {
	cutoff := p.now().Add(-p.expiry)
	for name, at := range p.typing {
		if at.Before(cutoff) {
			delete(p.typing, name)
		}
	}
}
