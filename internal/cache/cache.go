// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/agritrace/agritrace-backend/internal/config"
)

// Cache fronts the public read paths (consumer summaries, tracking
// lookups). A nil *Cache is valid and disables caching, so deployments
// without redis and the test suites skip it transparently.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg config.RedisConfig) *Cache {
	if cfg.Host == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Cache{client: client, ttl: ttl}
}

// GetJSON loads key into dest, reporting whether it was present. Cache
// failures are logged and treated as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache entry corrupt, dropping")
		c.client.Del(ctx, key)
		return false
	}

	return true
}

// SetJSON stores value under key with the configured TTL. Best effort.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) {
	if c == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// Invalidate drops keys after a write touching their source records.
func (c *Cache) Invalidate(keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}

	if err := c.client.Del(context.Background(), keys...).Err(); err != nil {
		logrus.WithError(err).Warn("Cache invalidation failed")
	}
}

func TrackingKey(trackingNumber string) string {
	return "tracking:" + trackingNumber
}

func SummaryKey(reference string) string {
	return "summary:" + reference
}
