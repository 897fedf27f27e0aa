package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "progress:submission:"

// RedisLog keeps one expiring key per processed event id.
type RedisLog struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLog(client *redis.Client, ttl time.Duration) *RedisLog {
	return &RedisLog{client: client, ttl: ttl}
}

func (l *RedisLog) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, redisPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (l *RedisLog) Mark(ctx context.Context, eventID string) error {
	if err := l.client.Set(ctx, redisPrefix+eventID, 1, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", eventID, err)
	}
	return nil
}
