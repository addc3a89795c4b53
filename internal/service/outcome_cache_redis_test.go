package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCacheForTest(t *testing.T) (*RedisOutcomeCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisOutcomeCache(client, ""), mr
}

func TestRedisOutcomeCachePutAndGet(t *testing.T) {
	cache, _ := newRedisCacheForTest(t)
	outcome := Outcome{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"id":"p-1"}`)}

	if err := cache.Put(context.Background(), "k", outcome, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.StatusCode != 201 || got.ContentType != "application/json" || string(got.Body) != `{"id":"p-1"}` {
		t.Fatalf("unexpected outcome: %+v", got)
	}
}

func TestRedisOutcomeCacheMiss(t *testing.T) {
	cache, _ := newRedisCacheForTest(t)
	if _, ok, err := cache.Get(context.Background(), "absent"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisOutcomeCacheEntryExpires(t *testing.T) {
	cache, mr := newRedisCacheForTest(t)
	if err := cache.Put(context.Background(), "k", Outcome{StatusCode: 200}, time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, ok, _ := cache.Get(context.Background(), "k"); ok {
		t.Fatal("expected entry to expire after TTL")
	}
}

func TestRedisOutcomeCacheZeroTTLIsNoop(t *testing.T) {
	cache, _ := newRedisCacheForTest(t)
	if err := cache.Put(context.Background(), "k", Outcome{StatusCode: 200}, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := cache.Get(context.Background(), "k"); ok {
		t.Fatal("expected zero-TTL put to store nothing")
	}
}
