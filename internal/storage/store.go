package storage

import "context"

// SubscriptionStore keeps web-push subscriptions per username.
// Implementations: redis.Client, memory.Client (for -dev without Redis).
type SubscriptionStore interface {
	Add(ctx context.Context, username string, subscription []byte) error
	List(ctx context.Context, username string) ([][]byte, error)
	RemoveByEndpoint(ctx context.Context, username, endpoint string) error
	Close() error
}
