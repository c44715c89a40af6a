package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const unreadKeyPrefix = "msg:unread:"

// UnreadCounts keeps per-conversation unseen counters in redis. All methods
// are nil-safe so the service runs without redis configured; the database
// remains the source of truth.
type UnreadCounts struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewUnreadCounts builds the cache. Returns nil when redis is not configured.
func NewUnreadCounts(client *redis.Client, logger *zap.Logger) *UnreadCounts {
	if client == nil {
		return nil
	}
	return &UnreadCounts{client: client, logger: logger, ttl: 30 * 24 * time.Hour}
}

func key(toUserID, fromUserID string) string {
	return unreadKeyPrefix + toUserID + ":" + fromUserID
}

// Incr bumps the unseen counter for messages from fromUserID to toUserID.
func (c *UnreadCounts) Incr(ctx context.Context, toUserID, fromUserID string) {
	if c == nil {
		return
	}
	k := key(toUserID, fromUserID)
	if err := c.client.Incr(ctx, k).Err(); err != nil {
		c.logger.Warn("unread incr failed", zap.String("key", k), zap.Error(err))
		return
	}
	c.client.Expire(ctx, k, c.ttl)
}

// Reset clears the counter after a conversation is marked seen.
func (c *UnreadCounts) Reset(ctx context.Context, toUserID, fromUserID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, key(toUserID, fromUserID)).Err(); err != nil {
		c.logger.Warn("unread reset failed", zap.Error(err))
	}
}

// Get returns the cached counter, or 0 with ok=false when unavailable.
func (c *UnreadCounts) Get(ctx context.Context, toUserID, fromUserID string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	n, err := c.client.Get(ctx, key(toUserID, fromUserID)).Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}
