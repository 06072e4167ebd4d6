package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/connectra/internal/middleware"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/repository"
)

type fakeClipStore struct {
	clips      map[string]*model.Clip
	likeCalls  int
	shareCalls int
}

func (f *fakeClipStore) Get(ctx context.Context, id string) (*model.Clip, error) {
	c, ok := f.clips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeClipStore) ToggleLike(ctx context.Context, clipID, username string) (bool, int, error) {
	f.likeCalls++
	f.clips[clipID].Likes++
	return true, f.clips[clipID].Likes, nil
}

func (f *fakeClipStore) AddComment(ctx context.Context, c *model.Comment) (int, error) {
	f.clips[c.ClipID].CommentCount++
	return f.clips[c.ClipID].CommentCount, nil
}

func (f *fakeClipStore) ToggleCommentLike(ctx context.Context, commentID, username string) (bool, int, error) {
	return false, 0, repository.ErrNotFound
}

func (f *fakeClipStore) Share(ctx context.Context, clipID, username string) (int, bool, error) {
	f.shareCalls++
	f.clips[clipID].Shares++
	return f.clips[clipID].Shares, true, nil
}

func (f *fakeClipStore) Comments(ctx context.Context, clipID string) ([]model.Comment, error) {
	return nil, nil
}

func newClipsRouter(clips *fakeClipStore, users *fakeUserStore) *chi.Mux {
	h := NewClipsHandler(clips, users)
	r := chi.NewRouter()
	r.Use(middleware.Identity)
	r.Post("/api/clips/{clipID}/like", h.Like)
	r.Post("/api/clips/{clipID}/comment", h.Comment)
	r.Post("/api/clips/{clipID}/share", h.Share)
	r.Post("/api/comments/{commentID}/like", h.CommentLike)
	return r
}

func clipsFixture() (*fakeClipStore, *fakeUserStore) {
	clips := &fakeClipStore{clips: map[string]*model.Clip{
		"clip1": {ID: "clip1", Author: "alice"},
	}}
	users := &fakeUserStore{users: map[string]*model.User{
		"alice": {Username: "alice", DisplayName: "Alice"},
	}}
	return clips, users
}

func TestClipEngagementUnknownClipIs404(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"like", "/api/clips/ghost/like"},
		{"comment", "/api/clips/ghost/comment?content=hi"},
		{"share", "/api/clips/ghost/share"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clips, users := clipsFixture()
			r := newClipsRouter(clips, users)

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.Header.Set("X-Username", "alice")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
			}
			if clips.likeCalls != 0 || clips.shareCalls != 0 {
				t.Errorf("engagement write reached the store for a missing clip")
			}
		})
	}
}

func TestClipLike(t *testing.T) {
	clips, users := clipsFixture()
	r := newClipsRouter(clips, users)

	req := httptest.NewRequest(http.MethodPost, "/api/clips/clip1/like", nil)
	req.Header.Set("X-Username", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp likeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Liked || resp.Likes != 1 {
		t.Errorf("response = %+v, want liked with 1 like", resp)
	}
}

func TestCommentLikeUnknownCommentIs404(t *testing.T) {
	clips, users := clipsFixture()
	r := newClipsRouter(clips, users)

	req := httptest.NewRequest(http.MethodPost, "/api/comments/ghost/like", nil)
	req.Header.Set("X-Username", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
