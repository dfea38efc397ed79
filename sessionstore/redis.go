package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements SessionStore using Redis, for deployments where the
// module runs behind more than one process.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new RedisStore. prefix namespaces the keys so the
// module can share a Redis instance with the host application.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "clientlogin"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(sid, name string) string {
	return fmt.Sprintf("%s:sess:%s:%s", s.prefix, sid, name)
}

// Get implements SessionStore.Get.
func (s *RedisStore) Get(ctx context.Context, sid, name string) (string, error) {
	value, err := s.client.Get(ctx, s.redisKey(sid, name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get session value from Redis: %w", err)
	}
	return value, nil
}

// Set implements SessionStore.Set.
func (s *RedisStore) Set(ctx context.Context, sid, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultStateTokenTTL
	}
	if err := s.client.Set(ctx, s.redisKey(sid, name), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session value in Redis: %w", err)
	}
	return nil
}

// Remove implements SessionStore.Remove.
func (s *RedisStore) Remove(ctx context.Context, sid, name string) error {
	if err := s.client.Del(ctx, s.redisKey(sid, name)).Err(); err != nil {
		return fmt.Errorf("failed to delete session value from Redis: %w", err)
	}
	return nil
}

var _ SessionStore = (*RedisStore)(nil)
