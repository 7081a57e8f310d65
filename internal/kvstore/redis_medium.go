package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMedium implements Medium using Redis string values.
type RedisMedium struct {
	client *redis.Client
}

// NewRedisMedium creates a Redis-backed medium and verifies connectivity.
func NewRedisMedium(redisURL string) (*RedisMedium, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisMedium{client: client}, nil
}

// NewRedisMediumWithClient creates a medium from an existing Redis client.
func NewRedisMediumWithClient(client *redis.Client) *RedisMedium {
	return &RedisMedium{client: client}
}

func (m *RedisMedium) Read(ctx context.Context, key string) (string, bool, error) {
	value, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

func (m *RedisMedium) Write(ctx context.Context, key, value string) error {
	if err := m.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (m *RedisMedium) Delete(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *RedisMedium) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := m.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys %s: %w", prefix, err)
	}
	return keys, nil
}

// Close closes the Redis connection.
func (m *RedisMedium) Close() error {
	return m.client.Close()
}

// Ping checks if Redis is reachable.
func (m *RedisMedium) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}
