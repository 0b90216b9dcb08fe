package dedup

import (
	"context"
	"time"

	"kb-assistant-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kb:dedup:"

// RedisGuard shares processed ids across instances. Entries expire after ttl instead of being evicted by count.
// Redis failures fail open: the event is treated as new.
type RedisGuard struct {
	rdb     *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  logger.ILogger
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *RedisGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RedisGuard{
		rdb:     rdb,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
		logger:  log,
	}
}

func (g *RedisGuard) Seen(id string) bool {
	if id == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	created, err := g.rdb.SetNX(ctx, redisKeyPrefix+id, 1, g.ttl).Result()
	if err != nil {
		g.logger.Warn("DedupGuard", "Redis unavailable, treating event as new", map[string]interface{}{
			"message_id": id,
			"error":      err,
		})
		return false
	}
	return !created
}
