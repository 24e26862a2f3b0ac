package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

// Cache is a thin TTL key-value layer over redis. It is constructed once and
// handed to the components that need it; nothing in this package holds
// process-wide mutable state.
type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// New wraps an existing redis client. defaultTTL applies when Set is called
// with a zero duration.
func New(client *redis.Client, defaultTTL time.Duration) *Cache {
	return &Cache{client: client, defaultTTL: defaultTTL}
}

// NewFromEnv connects to the redis instance named by CACHE_HOST/CACHE_PORT
// and pings it once so a dead cache shows up in the startup log.
func NewFromEnv(defaultTTL time.Duration) *Cache {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	pong, err := client.Ping(context.Background()).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to redis cache: %v", err)
	} else {
		log.Infof("[Cache] Successfully connected to redis cache: %s", pong)
	}

	return New(client, defaultTTL)
}

// Set stores a value under key. A zero ttl uses the cache's default.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key. Misses return redis.Nil.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// IsMiss reports whether err is a plain cache miss rather than a failure.
func IsMiss(err error) bool {
	return err == redis.Nil
}
