package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	delErr error
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeLockStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	if f.delErr != nil {
		return false, f.delErr
	}
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeLockStore) LockKey(name string) string { return "bo:lock:" + name }

func TestRedisLockIsExclusive(t *testing.T) {
	store := newFakeLockStore()
	first, err := NewRedisLock(store, "cron", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "cron", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if first.Key() != "bo:lock:cron" {
		t.Fatalf("unexpected key %s", first.Key())
	}
	if store.ttls[first.Key()] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v", store.ttls[first.Key()])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	if _, held := store.values[first.Key()]; !held {
		t.Fatal("non-holder release must not delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("holder release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after holder release")
	}
}

func TestRedisLockLeavesTakenOverLease(t *testing.T) {
	store := newFakeLockStore()
	lock, _ := NewRedisLock(store, "cron", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	store.values[lock.Key()] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values[lock.Key()] != "someone-else" {
		t.Fatal("a lease taken over by another instance must survive release")
	}
}

func TestRedisLockReleaseErrors(t *testing.T) {
	store := newFakeLockStore()
	lock, _ := NewRedisLock(store, "cron", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	store.delErr = errors.New("connection refused")
	if err := lock.Release(ctx); err == nil {
		t.Fatal("expected delete error to surface")
	}
	store.delErr = nil
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "cron", 0); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewRedisLock(newFakeLockStore(), "", 0); err == nil {
		t.Fatal("expected empty name error")
	}
}
