package middleware

import "context"

type contextKey string

const UsernameKey contextKey = "username"

// GetUsername returns the username from the context (set by Identity).
func GetUsername(ctx context.Context) string {
	v, _ := ctx.Value(UsernameKey).(string)
	return v
}
