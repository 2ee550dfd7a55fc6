package directory

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// MembershipCache remembers confirmed conversation memberships.
type MembershipCache interface {
	Get(ctx context.Context, key string) error
	Set(ctx context.Context, key string, ttl time.Duration) error
	BuildKey(userID, conversationID string) string
	Close() error
}
