package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilCacheIsSafe(t *testing.T) {
	cache := NewUnreadCounts(nil, zap.NewNop())
	require.Nil(t, cache)

	ctx := context.Background()
	require.NotPanics(t, func() {
		cache.Incr(ctx, "bob", "alice")
		cache.Reset(ctx, "bob", "alice")
	})

	n, ok := cache.Get(ctx, "bob", "alice")
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestKeyScopedPerConversation(t *testing.T) {
	assert.Equal(t, "msg:unread:bob:alice", key("bob", "alice"))
	assert.NotEqual(t, key("bob", "alice"), key("alice", "bob"))
}
