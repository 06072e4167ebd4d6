package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/connectra/internal/config"
	"github.com/connectra/internal/hub"
	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/mention"
	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/repository"
	"github.com/connectra/internal/ws"
)

// PushNotifier sends a web push. Nil disables pushes.
type PushNotifier interface {
	Notify(ctx context.Context, username, title, body string, data map[string]string)
}

type MessageHandler struct {
	cfg      *config.Config
	chatRepo *repository.ChatRepository
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
	hub      *hub.Hub
	push     PushNotifier
}

func NewMessageHandler(
	cfg *config.Config,
	chatRepo *repository.ChatRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	h *hub.Hub,
	push PushNotifier,
) *MessageHandler {
	return &MessageHandler{
		cfg:      cfg,
		chatRepo: chatRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		hub:      h,
		push:     push,
	}
}

// Send accepts a text message (form-encoded) or a message with a file
// attachment (multipart). The persisted message fans out to the chat over
// the WebSocket hub; the HTTP response only acknowledges acceptance.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("handler.SendMessage", time.Now())()
	username := middleware.GetUsername(r.Context())

	var (
		file   multipart.File
		header *multipart.FileHeader
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		f, fh, err := r.FormFile("file")
		if err == nil {
			file = f
			header = fh
			defer f.Close()
		}
	}

	chatID := strings.TrimSpace(r.FormValue("chat_id"))
	content := strings.TrimSpace(r.FormValue("content"))
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chat_id required")
		return
	}
	if content == "" && file == nil {
		writeError(w, http.StatusBadRequest, "content or file required")
		return
	}

	ok, err := h.chatRepo.IsParticipant(r.Context(), chatID, username)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("send message membership chat=%s user=%s: %v", chatID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}

	var attachments []model.Attachment
	if file != nil {
		att, err := h.saveAttachment(file, header)
		if err != nil {
			logger.Errorf("send message save file chat=%s user=%s: %v", chatID, username, err)
			writeError(w, http.StatusInternalServerError, "failed to store file")
			return
		}
		attachments = append(attachments, *att)
		if content == "" {
			content = "Shared a " + string(att.Type) + ": " + att.Filename
		}
	}

	markedUp, mentioned := mention.Process(content, h.lookupUser(r.Context()))

	m := &model.Message{
		ID:          uuid.New().String(),
		ChatID:      chatID,
		Username:    username,
		Content:     markedUp,
		RawContent:  content,
		Mentions:    mentioned,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("send message save chat=%s user=%s: %v", chatID, username, err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	var participants []string
	if model.IsDirectChat(chatID) {
		participants, err = h.chatRepo.Participants(r.Context(), chatID)
		if err != nil {
			logger.Errorf("send message participants chat=%s: %v", chatID, err)
		}
	}

	h.hub.BroadcastNewMessage(ws.NewMessagePayload{ChatID: chatID, Message: *m}, participants)
	h.notifyMentions(m)
	h.pushRecipients(m, participants)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message_id": m.ID})
}

// lookupUser resolves mention candidates case-insensitively against the
// user table.
func (h *MessageHandler) lookupUser(ctx context.Context) mention.Lookup {
	return func(candidate string) (string, bool) {
		u, err := h.userRepo.GetByUsername(ctx, candidate)
		if err != nil {
			return "", false
		}
		return u.Username, true
	}
}

// notifyMentions delivers mention_notification to every mentioned user's
// connections. Self-mentions are dropped.
func (h *MessageHandler) notifyMentions(m *model.Message) {
	for _, target := range m.Mentions {
		if target == m.Username {
			continue
		}
		h.hub.SendToUser(target, ws.ServerEvent{Type: ws.EventMention, Payload: ws.MentionPayload{
			FromUser:  m.Username,
			Message:   m.RawContent,
			ChatID:    m.ChatID,
			Timestamp: m.CreatedAt,
		}})
	}
}

// pushRecipients sends web pushes to users with no live connection:
// mentioned users always, direct-chat partners always.
func (h *MessageHandler) pushRecipients(m *model.Message, participants []string) {
	if h.push == nil {
		return
	}
	targets := make(map[string]struct{})
	for _, u := range m.Mentions {
		targets[u] = struct{}{}
	}
	for _, u := range participants {
		targets[u] = struct{}{}
	}
	delete(targets, m.Username)

	body := m.RawContent
	if body == "" {
		body = "Attachment"
	}
	body = truncatePushBody(body)
	data := map[string]string{"chat_id": m.ChatID, "message_id": m.ID}
	for target := range targets {
		if h.hub.IsOnline(target) {
			continue
		}
		target := target
		go h.push.Notify(context.Background(), target, m.Username, body, data)
	}
}

func (h *MessageHandler) saveAttachment(file multipart.File, header *multipart.FileHeader) (*model.Attachment, error) {
	// "+" often arrives instead of space (URL encoding); store with spaces.
	original := strings.TrimSpace(strings.ReplaceAll(header.Filename, "+", " "))
	original = filepath.Base(original)
	ext := strings.ToLower(filepath.Ext(original))
	stored := uuid.New().String() + ext

	if err := os.MkdirAll(h.cfg.UploadDir, 0755); err != nil {
		return nil, err
	}
	dst, err := os.Create(filepath.Join(h.cfg.UploadDir, stored))
	if err != nil {
		return nil, err
	}
	defer dst.Close()
	size, err := io.Copy(dst, file)
	if err != nil {
		return nil, err
	}

	return &model.Attachment{
		Filename:       original,
		StoredFilename: stored,
		Type:           attachmentTypeFor(ext),
		Size:           size,
	}, nil
}

// truncatePushBody caps the notification body at 120 bytes. The cut backs up
// to a rune boundary so the payload stays valid UTF-8.
func truncatePushBody(s string) string {
	if len(s) <= 120 {
		return s
	}
	cut := 117
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func attachmentTypeFor(ext string) model.AttachmentType {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return model.AttachmentImage
	case ".mp4", ".webm", ".mov":
		return model.AttachmentVideo
	default:
		return model.AttachmentFile
	}
}

// ServeUpload streams a stored attachment back to the browser.
func (h *MessageHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	if filename == "" || filename == "." {
		writeError(w, http.StatusBadRequest, "filename required")
		return
	}
	http.ServeFile(w, r, filepath.Join(h.cfg.UploadDir, filename))
}
