package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	store := newMemoryStore()
	first, err := NewRedisLock(store, "mealbox:lock:auto-confirm", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "mealbox:lock:auto-confirm", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if store.ttls["mealbox:lock:auto-confirm"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["mealbox:lock:auto-confirm"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second holder must not acquire")
	}
	if ok, _ := first.Acquire(ctx); ok {
		t.Fatalf("re-acquire by the holder must fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non owner: %v", err)
	}
	if _, ok := store.data["mealbox:lock:auto-confirm"]; !ok {
		t.Fatalf("non owner must not delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("expected lock free after release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	store.data["k"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.data["k"] != "someone-else" {
		t.Fatalf("foreign lock deleted")
	}
}

func TestRedisLockPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	lock, _ := NewRedisLock(store, "k", time.Minute)
	if _, err := lock.Acquire(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewRedisLock(newMemoryStore(), "", 0); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
