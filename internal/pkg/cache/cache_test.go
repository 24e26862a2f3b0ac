package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, time.Minute), mr
}

func TestSetGetDelete(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "v" {
		t.Fatalf("got %q, want v", got)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsMiss(err) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	if err := c.Set(ctx, "k2", "v", 5*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if ttl := mr.TTL("k2"); ttl != 5*time.Second {
		t.Fatalf("ttl = %v, want 5s", ttl)
	}
}

func TestExpiredKeyIsAMiss(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := c.Get(ctx, "k"); !IsMiss(err) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestIsMiss(t *testing.T) {
	if !IsMiss(redis.Nil) {
		t.Fatalf("redis.Nil must be a miss")
	}
	if IsMiss(context.Canceled) {
		t.Fatalf("context.Canceled is not a miss")
	}
}
