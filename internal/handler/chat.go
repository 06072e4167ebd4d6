package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/repository"
)

type ChatHandler struct {
	chatRepo *repository.ChatRepository
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
}

func NewChatHandler(chatRepo *repository.ChatRepository, msgRepo *repository.MessageRepository, userRepo *repository.UserRepository) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, msgRepo: msgRepo, userRepo: userRepo}
}

// History returns a chat's messages oldest first. Direct chats are only
// readable by their participants.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("handler.ChatHistory", time.Now())()
	chatID := chi.URLParam(r, "chatID")
	username := middleware.GetUsername(r.Context())

	ok, err := h.chatRepo.IsParticipant(r.Context(), chatID, username)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("chat history membership chat=%s user=%s: %v", chatID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}

	msgs, err := h.msgRepo.History(r.Context(), chatID)
	if err != nil {
		logger.Errorf("chat history chat=%s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// List returns every chat with its participants. Message bodies are not
// included; clients fetch those per chat.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatRepo.ListAll(r.Context())
	if err != nil {
		logger.Errorf("list chats: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// DirectChat returns a direct chat with its full message history. Only
// participants may read it.
func (h *ChatHandler) DirectChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	username := middleware.GetUsername(r.Context())

	chat, err := h.chatRepo.Get(r.Context(), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("dm get chat=%s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ok, err := h.chatRepo.IsParticipant(r.Context(), chatID, username)
	if err != nil {
		logger.Errorf("dm membership chat=%s user=%s: %v", chatID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}

	msgs, err := h.msgRepo.History(r.Context(), chatID)
	if err != nil {
		logger.Errorf("dm history chat=%s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	chat.Messages = msgs
	writeJSON(w, http.StatusOK, chat)
}

// UserChats returns the recent-chats list for the requesting user.
func (h *ChatHandler) UserChats(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	chats, err := h.chatRepo.UserChats(r.Context(), username)
	if err != nil {
		logger.Errorf("user chats user=%s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if chats == nil {
		chats = []model.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, chats)
}

type createDMResponse struct {
	ChatID string `json:"chat_id"`
}

// CreateDM establishes the direct chat between the requesting user and the
// named participant. Repeated calls return the same deterministic id.
func (h *ChatHandler) CreateDM(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	participant := strings.TrimSpace(r.FormValue("participant"))
	if participant == "" {
		writeError(w, http.StatusBadRequest, "participant required")
		return
	}
	if strings.EqualFold(participant, username) {
		writeError(w, http.StatusBadRequest, "cannot start a chat with yourself")
		return
	}
	if _, err := h.userRepo.GetByUsername(r.Context(), participant); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("create dm lookup %s: %v", participant, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	chatID, err := h.chatRepo.EnsureDirect(r.Context(), username, participant)
	if err != nil {
		logger.Errorf("create dm %s <-> %s: %v", username, participant, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, createDMResponse{ChatID: chatID})
}
