package redis

import (
	"ai-chat/internal/conversation"
	"ai-chat/internal/logger"
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const streamKeyPrefix = "chat:stream:"

var _ conversation.StreamGuard = (*StreamLocker)(nil)

// StreamLocker admits one open stream per conversation across server instances.
// The lock expires after ttl so a crashed instance cannot hold it forever.
type StreamLocker struct {
	cli *redis.Client
	ttl time.Duration
}

// NewStreamLocker creates a redis-backed stream guard
func NewStreamLocker(c *Client, ttl time.Duration) *StreamLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StreamLocker{cli: c.cli, ttl: ttl}
}

func (l *StreamLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key := streamKeyPrefix + conversationID
	token := uuid.NewString()

	ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire stream lock: %w", err)
	}
	if !ok {
		return nil, conversation.ErrStreamOpen
	}

	return func() {
		// the request context may be gone by the time the turn ends
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result(); err != nil {
			logger.Log.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to release stream lock")
		}
	}, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
