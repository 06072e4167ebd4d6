package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	maxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

type item struct {
	val []byte
	exp time.Time
}

type Client struct {
	mu   sync.RWMutex
	subs map[string][]item
}

func New() *Client {
	return &Client{subs: make(map[string][]item)}
}

func (c *Client) Close() error { return nil }

func (c *Client) Add(ctx context.Context, username string, subscription []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.live(username)
	kept = append(kept, item{val: subscription, exp: time.Now().Add(subscriptionTTL)})
	if len(kept) > maxSubsPerUser {
		kept = kept[len(kept)-maxSubsPerUser:]
	}
	c.subs[username] = kept
	return nil
}

func (c *Client) List(ctx context.Context, username string) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	var out [][]byte
	for _, it := range c.subs[username] {
		if now.After(it.exp) {
			continue
		}
		out = append(out, it.val)
	}
	return out, nil
}

func (c *Client) RemoveByEndpoint(ctx context.Context, username, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept []item
	for _, it := range c.live(username) {
		var sub struct {
			Endpoint string `json:"endpoint"`
		}
		if json.Unmarshal(it.val, &sub) == nil && sub.Endpoint == endpoint {
			continue
		}
		kept = append(kept, it)
	}
	c.subs[username] = kept
	return nil
}

func (c *Client) live(username string) []item {
	now := time.Now()
	var kept []item
	for _, it := range c.subs[username] {
		if now.After(it.exp) {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}
