// Package cache holds the Redis backed single-use nonce store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const noncePrefix = "oauth:state:"

type RedisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisNonceStore) Remember(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, noncePrefix+nonce, 1, ttl).Err()
}

// Consume 는 키를 지우면서 존재 여부를 확인합니다. DEL 이 원자적이라 동시 콜백 중 하나만 성공합니다.
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.Del(ctx, noncePrefix+nonce).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisNonceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
