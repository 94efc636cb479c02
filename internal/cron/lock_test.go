package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisLock(store, "rb:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	won, err := lock.Acquire(context.Background())
	if err != nil || !won {
		t.Fatalf("first acquire should win, got won=%v err=%v", won, err)
	}

	other, err := NewRedisLock(store, "rb:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	won, err = other.Acquire(context.Background())
	if err != nil || won {
		t.Fatalf("second acquire must lose, got won=%v err=%v", won, err)
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	won, err = other.Acquire(context.Background())
	if err != nil || !won {
		t.Fatalf("acquire after release should win, got won=%v err=%v", won, err)
	}
}

func TestRedisLock_ReleaseSkipsForeignOwner(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisLock(store, "rb:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate TTL expiry followed by another instance taking the lock.
	store.values["rb:test:lock"] = "someone-else"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values["rb:test:lock"] != "someone-else" {
		t.Fatal("release must not delete a lock it no longer owns")
	}
}

func TestRedisLock_ReleaseWithoutAcquireIsNoOp(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisLock(store, "rb:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
