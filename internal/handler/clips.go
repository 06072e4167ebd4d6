package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/repository"
)

// clipStore is the slice of repository.ClipRepository the clip endpoints use.
type clipStore interface {
	Get(ctx context.Context, id string) (*model.Clip, error)
	ToggleLike(ctx context.Context, clipID, username string) (liked bool, likes int, err error)
	AddComment(ctx context.Context, c *model.Comment) (total int, err error)
	ToggleCommentLike(ctx context.Context, commentID, username string) (liked bool, likes int, err error)
	Share(ctx context.Context, clipID, username string) (shares int, shared bool, err error)
	Comments(ctx context.Context, clipID string) ([]model.Comment, error)
}

type ClipsHandler struct {
	clipRepo clipStore
	userRepo userStore
}

func NewClipsHandler(clipRepo clipStore, userRepo userStore) *ClipsHandler {
	return &ClipsHandler{clipRepo: clipRepo, userRepo: userRepo}
}

// clipExists writes the error response for a missing clip and reports whether
// the handler may proceed. Engagement writes hit the child tables first, so a
// missing clip would otherwise surface as an FK violation instead of a 404.
func (h *ClipsHandler) clipExists(w http.ResponseWriter, r *http.Request, clipID string) bool {
	if _, err := h.clipRepo.Get(r.Context(), clipID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "clip not found")
			return false
		}
		logger.Errorf("clip lookup %s: %v", clipID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	return true
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

type shareResponse struct {
	Shares int  `json:"shares"`
	Shared bool `json:"shared"`
}

// Like toggles the requesting user's like on a clip.
func (h *ClipsHandler) Like(w http.ResponseWriter, r *http.Request) {
	clipID := chi.URLParam(r, "clipID")
	username := middleware.GetUsername(r.Context())
	if !h.clipExists(w, r, clipID) {
		return
	}
	liked, likes, err := h.clipRepo.ToggleLike(r.Context(), clipID, username)
	if err != nil {
		logger.Errorf("clip like %s by %s: %v", clipID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked, Likes: likes})
}

// Comment appends a comment to a clip and returns it with the author's
// display name resolved.
func (h *ClipsHandler) Comment(w http.ResponseWriter, r *http.Request) {
	clipID := chi.URLParam(r, "clipID")
	username := middleware.GetUsername(r.Context())
	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	if !h.clipExists(w, r, clipID) {
		return
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		ClipID:    clipID,
		Author:    username,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := h.clipRepo.AddComment(r.Context(), c); err != nil {
		logger.Errorf("clip comment %s by %s: %v", clipID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u, err := h.userRepo.GetByUsername(r.Context(), username); err == nil {
		c.AuthorDisplayName = u.DisplayName
	}
	writeJSON(w, http.StatusOK, c)
}

// Comments lists a clip's comments oldest first.
func (h *ClipsHandler) Comments(w http.ResponseWriter, r *http.Request) {
	clipID := chi.URLParam(r, "clipID")
	comments, err := h.clipRepo.Comments(r.Context(), clipID)
	if err != nil {
		logger.Errorf("clip comments %s: %v", clipID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// CommentLike toggles the requesting user's like on a comment.
func (h *ClipsHandler) CommentLike(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "commentID")
	username := middleware.GetUsername(r.Context())
	liked, likes, err := h.clipRepo.ToggleCommentLike(r.Context(), commentID, username)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	if err != nil {
		logger.Errorf("comment like %s by %s: %v", commentID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked, Likes: likes})
}

// Share records a share. Only the first share per user bumps the counter;
// shared reports whether this call did.
func (h *ClipsHandler) Share(w http.ResponseWriter, r *http.Request) {
	clipID := chi.URLParam(r, "clipID")
	username := middleware.GetUsername(r.Context())
	if !h.clipExists(w, r, clipID) {
		return
	}
	shares, shared, err := h.clipRepo.Share(r.Context(), clipID, username)
	if err != nil {
		logger.Errorf("clip share %s by %s: %v", clipID, username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{Shares: shares, Shared: shared})
}
