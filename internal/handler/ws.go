package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/connectra/internal/hub"
	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/repository"
)

type WSHandler struct {
	hub            *hub.Hub
	userRepo       *repository.UserRepository
	allowedOrigins string
}

// NewWSHandler creates the WebSocket entry point. allowedOrigins matches the
// CORS setting (comma-separated or "*").
func NewWSHandler(h *hub.Hub, userRepo *repository.UserRepository, allowedOrigins string) *WSHandler {
	return &WSHandler{hub: h, userRepo: userRepo, allowedOrigins: strings.TrimSpace(allowedOrigins)}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == "*" || h.allowedOrigins == "" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(h.allowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	if username == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// First contact may precede any REST call; make sure the user row exists
	// before the hub flips its online flag.
	if err := h.userRepo.Ensure(r.Context(), username, username); err != nil {
		logger.Errorf("ws ensure user=%s: %v", username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return h.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := hub.NewClient(h.hub, conn, username)
	client.Start(ctx, cancel)
	h.hub.Register(client)
}
