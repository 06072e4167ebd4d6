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

type fakeUserStore struct {
	users       map[string]*model.User
	toggleCalls int
}

func (f *fakeUserStore) GetAll(ctx context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetProfile(ctx context.Context, username, viewer string) (*model.Profile, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Profile{Username: u.Username, DisplayName: u.DisplayName}, nil
}

func (f *fakeUserStore) ToggleFollow(ctx context.Context, follower, followee string) (bool, int, int, error) {
	f.toggleCalls++
	return true, 1, 1, nil
}

func newUserRouter(store *fakeUserStore) *chi.Mux {
	h := NewUserHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Identity)
	r.Get("/api/user/{username}", h.Profile)
	r.Post("/api/follow/{username}", h.Follow)
	return r
}

func TestFollowUnknownTargetIs404(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{
		"alice": {Username: "alice"},
	}}
	r := newUserRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/follow/ghost", nil)
	req.Header.Set("X-Username", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if store.toggleCalls != 0 {
		t.Errorf("ToggleFollow called %d times for unknown target", store.toggleCalls)
	}
}

func TestFollowSelfIs400(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{
		"alice": {Username: "alice"},
	}}
	r := newUserRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/follow/alice", nil)
	req.Header.Set("X-Username", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFollowKnownTarget(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{
		"alice": {Username: "alice"},
		"bob":   {Username: "bob"},
	}}
	r := newUserRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/follow/bob", nil)
	req.Header.Set("X-Username", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp followResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Following || resp.FollowersCount != 1 {
		t.Errorf("response = %+v, want following with 1 follower", resp)
	}
	if store.toggleCalls != 1 {
		t.Errorf("ToggleFollow called %d times, want 1", store.toggleCalls)
	}
}

func TestProfileUnknownUserIs404(t *testing.T) {
	store := &fakeUserStore{users: map[string]*model.User{
		"alice": {Username: "alice"},
	}}
	r := newUserRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/user/ghost", nil)
	req.Header.Set("X-Username", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
