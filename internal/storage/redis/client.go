package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// A browser re-subscribes on every service worker update, so keep only the
// most recent subscriptions per user and let idle lists expire.
const (
	maxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func subsKey(username string) string {
	return "push:subs:" + username
}

// Add appends the subscription to push:subs:{username}, trims the list to
// the newest maxSubsPerUser entries and refreshes the TTL.
func (c *Client) Add(ctx context.Context, username string, subscription []byte) error {
	key := subsKey(username)
	pipe := c.cli.TxPipeline()
	pipe.RPush(ctx, key, subscription)
	pipe.LTrim(ctx, key, int64(-maxSubsPerUser), -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Client) List(ctx context.Context, username string) ([][]byte, error) {
	vals, err := c.cli.LRange(ctx, subsKey(username), 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// RemoveByEndpoint drops subscriptions whose endpoint matches. Used both for
// explicit unsubscribe and for pruning endpoints the push service rejected.
func (c *Client) RemoveByEndpoint(ctx context.Context, username, endpoint string) error {
	key := subsKey(username)
	vals, err := c.cli.LRange(ctx, key, 0, -1).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	for _, v := range vals {
		var sub struct {
			Endpoint string `json:"endpoint"`
		}
		if json.Unmarshal([]byte(v), &sub) != nil {
			continue
		}
		if sub.Endpoint == endpoint {
			if err := c.cli.LRem(ctx, key, 0, v).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
