// Package hub maintains WebSocket connections and fans events out to
// chat rooms and users.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/repository"
	"github.com/connectra/internal/ws"
)

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	total    int
	maxConns int

	userRepo *repository.UserRepository

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(userRepo *repository.UserRepository, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		userRepo:   userRepo,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.username)
		c.Close()
		return
	}
	if _, ok := h.clients[c.username]; !ok {
		h.clients[c.username] = make(map[*Client]struct{})
	}
	h.clients[c.username][c] = struct{}{}
	h.total++
	first := len(h.clients[c.username]) == 1
	h.mu.Unlock()

	if first {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userRepo.SetOnline(ctx, c.username, true); err != nil {
			logger.Errorf("ws set online user=%s: %v", c.username, err)
		}
		h.broadcastUserStatus(c.username, true)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.username]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.username)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	if lastClient {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userRepo.SetOnline(ctx, c.username, false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.username, err)
		}
		h.broadcastUserStatus(c.username, false)
	}
}

// HandleEvent dispatches an incoming client event.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev ws.ClientEvent) {
	if ev.ChatID == "" {
		return
	}
	switch ev.Type {
	case ws.EventJoinChat:
		h.joinRoom(ev.ChatID, c)
	case ws.EventLeaveChat:
		h.leaveRoom(ev.ChatID, c)
	case ws.EventTyping:
		h.relayTyping(ws.EventUserTyping, ev.ChatID, c)
	case ws.EventStopTyping:
		h.relayTyping(ws.EventUserStopTyping, ev.ChatID, c)
	}
}

func (h *Hub) joinRoom(chatID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Client]struct{})
	}
	h.rooms[chatID][c] = struct{}{}
}

func (h *Hub) leaveRoom(chatID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[chatID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, chatID)
	}
}

// relayTyping forwards a typing transition to everyone in the room except
// the sender's own connections.
func (h *Hub) relayTyping(evType ws.EventType, chatID string, c *Client) {
	out := ws.ServerEvent{Type: evType, Payload: ws.TypingPayload{
		ChatID:   chatID,
		Username: c.username,
	}}
	for _, target := range h.roomMembers(chatID) {
		if target.username == c.username {
			continue
		}
		h.sendToClient(target, out)
	}
}

// broadcastUserStatus tells every connected client about an online flip.
// The roster is global, so no room filtering applies.
func (h *Hub) broadcastUserStatus(username string, online bool) {
	out := ws.ServerEvent{Type: ws.EventUserStatus, Payload: ws.UserStatusPayload{
		Username: username,
		Online:   online,
	}}

	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for user, clients := range h.clients {
		if user == username {
			continue
		}
		for c := range clients {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, out)
	}
}

// BroadcastNewMessage delivers a new_message event to the room. For direct
// chats the listed participants also get it on all their connections even
// if they have not joined the room, so badge counts stay current.
func (h *Hub) BroadcastNewMessage(payload ws.NewMessagePayload, participants []string) {
	defer logger.DeferLogDuration("hub.BroadcastNewMessage", time.Now())()
	out := ws.ServerEvent{Type: ws.EventNewMessage, Payload: payload}

	delivered := make(map[*Client]struct{}, 8)
	for _, c := range h.roomMembers(payload.ChatID) {
		delivered[c] = struct{}{}
		h.sendToClient(c, out)
	}
	for _, username := range participants {
		for _, c := range h.userClients(username) {
			if _, ok := delivered[c]; ok {
				continue
			}
			delivered[c] = struct{}{}
			h.sendToClient(c, out)
		}
	}
}

// SendToUser delivers the event to every connection of a user.
func (h *Hub) SendToUser(username string, ev ws.ServerEvent) {
	for _, c := range h.userClients(username) {
		h.sendToClient(c, ev)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[username]) > 0
}

func (h *Hub) roomMembers(chatID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[chatID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (h *Hub) userClients(username string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.clients[username]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(clients))
	for c := range clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) sendToClient(c *Client, ev ws.ServerEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.username)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
