// Package api provides the REST client for the Connectra server. The push
// channel (package ws) carries real-time events; everything request/response
// shaped goes through here.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/connectra/internal/model"
)

// Client is a Connectra API client. Username identifies the session on every
// request (display-only identity; there is no credential exchange).
type Client struct {
	BaseURL    string
	Username   string
	HTTPClient *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL, username string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Username:   username,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("X-Username", c.Username)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("api: %s (%d)", e.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("api: status %d", resp.StatusCode)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Users returns the ordered roster.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.getJSON(ctx, "/api/users", &users); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return users, nil
}

// ChatHistory returns the full message history for chatID, oldest first,
// attachments included.
func (c *Client) ChatHistory(ctx context.Context, chatID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.getJSON(ctx, "/api/chats/"+url.PathEscape(chatID)+"/messages", &msgs); err != nil {
		return nil, fmt.Errorf("chat history %s: %w", chatID, err)
	}
	return msgs, nil
}

// UserChats returns the recent-chats summary for the current user.
func (c *Client) UserChats(ctx context.Context) ([]model.ChatSummary, error) {
	var chats []model.ChatSummary
	if err := c.getJSON(ctx, "/api/user_chats", &chats); err != nil {
		return nil, fmt.Errorf("user chats: %w", err)
	}
	return chats, nil
}

// SendMessage submits text to a chat. Success is indicated by status only;
// the authoritative message arrives via the push channel.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) error {
	form := url.Values{"chat_id": {chatID}, "content": {content}}
	if err := c.postForm(ctx, "/api/send_message", form, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendFile submits a file attachment (with optional caption) to a chat.
func (c *Client) SendFile(ctx context.Context, chatID, content, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	if err := mw.WriteField("content", content); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("send file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/send_message", &buf)
	if err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	return nil
}

// CreateDM establishes (or returns) the direct chat with participant and
// returns its deterministic id.
func (c *Client) CreateDM(ctx context.Context, participant string) (string, error) {
	var out struct {
		ChatID string `json:"chat_id"`
	}
	form := url.Values{"participant": {participant}}
	if err := c.postForm(ctx, "/api/create_dm", form, &out); err != nil {
		return "", fmt.Errorf("create dm: %w", err)
	}
	return out.ChatID, nil
}

// Profile returns the public profile for username.
func (c *Client) Profile(ctx context.Context, username string) (*model.Profile, error) {
	var p model.Profile
	if err := c.getJSON(ctx, "/api/user/"+url.PathEscape(username), &p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", username, err)
	}
	return &p, nil
}

// --- Clips engagement (independent REST toggles, no shared chat state) ---

// LikeResult is the response of the like toggles.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// FollowResult is the response of the follow toggle.
type FollowResult struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followers_count"`
	FollowingCount int  `json:"following_count"`
}

// ShareResult is the response of a share.
type ShareResult struct {
	Shares int  `json:"shares"`
	Shared bool `json:"shared"`
}

// LikeClip toggles the current user's like on a clip.
func (c *Client) LikeClip(ctx context.Context, clipID string) (*LikeResult, error) {
	var out LikeResult
	if err := c.postForm(ctx, "/api/clips/"+url.PathEscape(clipID)+"/like", url.Values{}, &out); err != nil {
		return nil, fmt.Errorf("like clip: %w", err)
	}
	return &out, nil
}

// CommentClip posts a comment on a clip and returns the stored comment.
func (c *Client) CommentClip(ctx context.Context, clipID, content string) (*model.Comment, error) {
	var out model.Comment
	form := url.Values{"content": {content}}
	if err := c.postForm(ctx, "/api/clips/"+url.PathEscape(clipID)+"/comment", form, &out); err != nil {
		return nil, fmt.Errorf("comment clip: %w", err)
	}
	return &out, nil
}

// LikeComment toggles the current user's like on a comment.
func (c *Client) LikeComment(ctx context.Context, commentID string) (*LikeResult, error) {
	var out LikeResult
	if err := c.postForm(ctx, "/api/comments/"+url.PathEscape(commentID)+"/like", url.Values{}, &out); err != nil {
		return nil, fmt.Errorf("like comment: %w", err)
	}
	return &out, nil
}

// Follow toggles following username.
func (c *Client) Follow(ctx context.Context, username string) (*FollowResult, error) {
	var out FollowResult
	if err := c.postForm(ctx, "/api/follow/"+url.PathEscape(username), url.Values{}, &out); err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	return &out, nil
}

// ShareClip records a share and returns the new counter.
func (c *Client) ShareClip(ctx context.Context, clipID string) (*ShareResult, error) {
	var out ShareResult
	if err := c.postForm(ctx, "/api/clips/"+url.PathEscape(clipID)+"/share", url.Values{}, &out); err != nil {
		return nil, fmt.Errorf("share clip: %w", err)
	}
	return &out, nil
}

// PushSubscription mirrors the browser PushManager subscription shape.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SubscribePush registers a web push subscription for the current user.
func (c *Client) SubscribePush(ctx context.Context, sub PushSubscription) error {
	body, err := json.Marshal(struct {
		Subscription PushSubscription `json:"subscription"`
	}{sub})
	if err != nil {
		return fmt.Errorf("subscribe push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/push/subscribe", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("subscribe push: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("subscribe push: %w", err)
	}
	return nil
}

// UnsubscribePush removes a subscription by endpoint.
func (c *Client) UnsubscribePush(ctx context.Context, endpoint string) error {
	body, _ := json.Marshal(map[string]string{"endpoint": endpoint})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/push/subscribe", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unsubscribe push: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("unsubscribe push: %w", err)
	}
	return nil
}
