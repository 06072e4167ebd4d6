package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSetsIdentityHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Username"); got != "alice" {
			t.Errorf("X-Username = %q, want alice", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"username":"alice","online":true},{"username":"bob","online":false}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice")
	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || !users[0].Online {
		t.Fatalf("users = %+v", users)
	}
}

func TestClientSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"user not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice")
	_, err := c.Profile(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "user not found") {
		t.Fatalf("error %q does not carry the server message", err)
	}
}

func TestSendMessageForm(t *testing.T) {
	var gotPath, gotChat, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.FormValue("chat_id")
		gotContent = r.FormValue("content")
		w.Write([]byte(`{"status":"ok","message_id":"m1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice")
	if err := c.SendMessage(context.Background(), "global", "hello there"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/api/send_message" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "global" || gotContent != "hello there" {
		t.Errorf("form = chat_id:%q content:%q", gotChat, gotContent)
	}
}

func TestCreateDM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("participant") != "bob" {
			t.Errorf("participant = %q", r.FormValue("participant"))
		}
		w.Write([]byte(`{"chat_id":"dm_alice_bob"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice")
	chatID, err := c.CreateDM(context.Background(), "bob")
	if err != nil {
		t.Fatalf("CreateDM: %v", err)
	}
	if chatID != "dm_alice_bob" {
		t.Fatalf("chatID = %q", chatID)
	}
}

func TestClipToggles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/clips/c1/like":
			w.Write([]byte(`{"liked":true,"likes":5}`))
		case "/api/clips/c1/share":
			w.Write([]byte(`{"shares":3,"shared":false}`))
		case "/api/follow/bob":
			w.Write([]byte(`{"following":true,"followers_count":10,"following_count":4}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice")

	like, err := c.LikeClip(context.Background(), "c1")
	if err != nil {
		t.Fatalf("LikeClip: %v", err)
	}
	if !like.Liked || like.Likes != 5 {
		t.Fatalf("like = %+v", like)
	}

	share, err := c.ShareClip(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ShareClip: %v", err)
	}
	if share.Shared || share.Shares != 3 {
		t.Fatalf("share = %+v", share)
	}

	follow, err := c.Follow(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if !follow.Following || follow.FollowersCount != 10 || follow.FollowingCount != 4 {
		t.Fatalf("follow = %+v", follow)
	}
}

func TestChatHistoryEscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice")
	if _, err := c.ChatHistory(context.Background(), "dm_alice_bob"); err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if gotPath != "/api/chats/dm_alice_bob/messages" {
		t.Fatalf("path = %q", gotPath)
	}
}
