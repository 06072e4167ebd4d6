package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/repository"
)

// userStore is the slice of repository.UserRepository the user endpoints use.
type userStore interface {
	GetAll(ctx context.Context) ([]model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetProfile(ctx context.Context, username, viewer string) (*model.Profile, error)
	ToggleFollow(ctx context.Context, follower, followee string) (following bool, followers, followingCount int, err error)
}

type UserHandler struct {
	userRepo userStore
}

func NewUserHandler(userRepo userStore) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// List returns the full roster with online flags.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("handler.UserList", time.Now())()
	users, err := h.userRepo.GetAll(r.Context())
	if err != nil {
		logger.Errorf("user list: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Profile returns a user's profile with follower counters relative to the
// requesting user.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	viewer := middleware.GetUsername(r.Context())
	profile, err := h.userRepo.GetProfile(r.Context(), username, viewer)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logger.Errorf("user profile %s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type followResponse struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followers_count"`
	FollowingCount int  `json:"following_count"`
}

// Follow toggles the follow edge from the requesting user to the target and
// returns the new state with both counters.
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "username")
	follower := middleware.GetUsername(r.Context())
	if target == follower {
		writeError(w, http.StatusBadRequest, "cannot follow yourself")
		return
	}
	if _, err := h.userRepo.GetByUsername(r.Context(), target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("follow lookup %s: %v", target, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	following, followers, followingCount, err := h.userRepo.ToggleFollow(r.Context(), follower, target)
	if err != nil {
		logger.Errorf("follow %s -> %s: %v", follower, target, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, followResponse{
		Following:      following,
		FollowersCount: followers,
		FollowingCount: followingCount,
	})
}
