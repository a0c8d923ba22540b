package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"projectstore/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisAutoSaveCache keeps autosaves in Valkey/Redis under a common prefix.
type RedisAutoSaveCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisAutoSaveCache connects to the configured Valkey instance
func NewRedisAutoSaveCache(ctx context.Context) (*RedisAutoSaveCache, error) {
	addr := fmt.Sprintf("%s:%d", config.ValkeyHost, config.ValkeyPort)
	slog.Debug("Connecting to Valkey autosave cache", "addr", addr)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // Add to config if needed
		DB:       0,
	})

	// Test the connection
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	slog.Info("Autosave cache initialized", "backend", "redis", "addr", addr)
	return NewRedisAutoSaveCacheWithClient(client, config.AutoSaveCacheName, config.AutoSaveTTL), nil
}

// NewRedisAutoSaveCacheWithClient wraps an existing client (for testing)
func NewRedisAutoSaveCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisAutoSaveCache {
	return &RedisAutoSaveCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisAutoSaveCache) redisKey(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisAutoSaveCache) Get(ctx context.Context, key string) (*AutoSaveEntry, error) {
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read autosave: %w", err)
	}

	var entry AutoSaveEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal autosave: %w", err)
	}
	return &entry, nil
}

func (c *RedisAutoSaveCache) Put(ctx context.Context, key string, entry AutoSaveEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal autosave: %w", err)
	}
	if err := c.client.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write autosave: %w", err)
	}
	return nil
}

func (c *RedisAutoSaveCache) Burst(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan autosaves: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete autosaves: %w", err)
	}
	slog.Info("Autosave cache burst", "backend", "redis", "entries", len(keys))
	return nil
}

func (c *RedisAutoSaveCache) Close() error {
	return c.client.Close()
}
