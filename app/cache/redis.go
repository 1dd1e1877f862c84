package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores rendered feed documents in Redis so repeated requests
// skip regeneration. All methods degrade to a miss on Redis failure.
type Cache struct {
	client *redis.Client
}

func NewCache(ctx context.Context, addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Cache{client: client}, nil
}

type cachedFeed struct {
	Content  string `json:"content"`
	CachedAt int64  `json:"cached_at"`
}

func feedKey(feedName string) string {
	hash := sha256.Sum256([]byte(feedName))
	return fmt.Sprintf("feed:%x", hash[:8])
}

// SetFeedData stores a rendered feed document with a TTL.
func (c *Cache) SetFeedData(ctx context.Context, feedName, content string, ttl time.Duration) error {
	data, err := json.Marshal(cachedFeed{
		Content:  content,
		CachedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cached feed %s: %w", feedName, err)
	}

	if err := c.client.Set(ctx, feedKey(feedName), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache feed %s: %w", feedName, err)
	}
	return nil
}

// GetFeedData returns a cached rendered feed and whether it was found.
// Corrupt cache entries are deleted and reported as a miss.
func (c *Cache) GetFeedData(ctx context.Context, feedName string) (string, bool, error) {
	key := feedKey(feedName)

	data, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached feed %s: %w", feedName, err)
	}

	var cached cachedFeed
	if err := json.Unmarshal([]byte(data), &cached); err != nil || cached.Content == "" {
		c.client.Del(ctx, key)
		return "", false, nil
	}

	return cached.Content, true, nil
}

// InvalidateFeed drops the cached document for a feed, typically after
// a refilter changed its visible entries.
func (c *Cache) InvalidateFeed(ctx context.Context, feedName string) error {
	if err := c.client.Del(ctx, feedKey(feedName)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached feed %s: %w", feedName, err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
