package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

// RedisSeen хранит ключи дедупликации в Redis set.
type RedisSeen struct {
	client *redis.Client
	key    string
}

var _ domain.SeenMirror = (*RedisSeen)(nil)

// NewRedisSeen создаёт зеркало кэша по ключу set.
func NewRedisSeen(client *redis.Client, key string) *RedisSeen {
	return &RedisSeen{client: client, key: key}
}

// Members возвращает все ключи.
func (c *RedisSeen) Members(ctx context.Context) ([]string, error) {
	start := time.Now()
	members, err := c.client.SMembers(ctx, c.key).Result()
	metrics.ObserveNetworkRequest("redis", "smembers", c.key, start, err)
	return members, err
}

// Add добавляет ключи.
func (c *RedisSeen) Add(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, k)
	}
	start := time.Now()
	err := c.client.SAdd(ctx, c.key, args...).Err()
	metrics.ObserveNetworkRequest("redis", "sadd", c.key, start, err)
	return err
}
