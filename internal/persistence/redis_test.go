package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type stubRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newStubRedis() *stubRedis {
	return &stubRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.data[key] = fmt.Sprintf("%s", value)
	s.ttls[key] = ttl
	return nil
}

func (s *stubRedis) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *stubRedis) CartKey(sessionID string) string {
	return "cartengine:cart:" + sessionID
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stub := newStubRedis()
	store := &RedisStore{client: stub, ttl: time.Hour}

	saved := sampleCart(t, "s-1")
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if stub.ttls["cartengine:cart:s-1"] != time.Hour {
		t.Fatalf("expected ttl propagated, got %v", stub.ttls["cartengine:cart:s-1"])
	}

	loaded, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil || len(loaded.Items) != 1 {
		t.Fatalf("unexpected loaded cart: %+v", loaded)
	}
	if !loaded.Items[0].TotalPrice.Equal(saved.Items[0].TotalPrice) {
		t.Fatalf("price precision lost: %s vs %s", loaded.Items[0].TotalPrice, saved.Items[0].TotalPrice)
	}
	if loaded.Items[0].Key != saved.Items[0].Key {
		t.Fatalf("item key changed across round trip: %s vs %s", loaded.Items[0].Key, saved.Items[0].Key)
	}
}

func TestRedisStoreMissingSession(t *testing.T) {
	t.Parallel()

	store := &RedisStore{client: newStubRedis(), ttl: time.Hour}
	loaded, err := store.Load(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for absent session, got %+v", loaded)
	}
}

func TestRedisStoreClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stub := newStubRedis()
	store := &RedisStore{client: stub, ttl: time.Hour}

	if err := store.Save(ctx, sampleCart(t, "s-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Clear(ctx, "s-1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	loaded, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected cleared session to be empty")
	}
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	t.Parallel()

	stub := newStubRedis()
	stub.data["cartengine:cart:s-1"] = "{not json"
	store := &RedisStore{client: stub, ttl: time.Hour}

	if _, err := store.Load(context.Background(), "s-1"); err == nil {
		t.Fatal("expected decode error for corrupt payload")
	}
}
