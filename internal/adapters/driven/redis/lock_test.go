package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLock_OwnerIDs(t *testing.T) {
	_, client := setupTestRedis(t)

	a, b := NewLock(client), NewLock(client)
	if a.OwnerID() == b.OwnerID() {
		t.Errorf("expected unique owner ids, got %s twice", a.OwnerID())
	}
	if parts := strings.Split(a.OwnerID(), ":"); len(parts) != 3 {
		t.Errorf("expected host:pid:uuid, got %s", a.OwnerID())
	}
}

func TestLock_AcquireIsExclusive(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	ok, err := a.Acquire(ctx, "recovery-sweeper", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got %v %v", ok, err)
	}
	if got, _ := mr.Get(lockPrefix + "recovery-sweeper"); got != a.OwnerID() {
		t.Errorf("expected key to hold owner id, got %q", got)
	}

	ok, err = b.Acquire(ctx, "recovery-sweeper", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second instance to be refused")
	}

	ok, _ = a.Acquire(ctx, "recovery-sweeper", time.Minute)
	if ok {
		t.Error("expected a held lock not to be re-acquired")
	}

	ok, _ = b.Acquire(ctx, "metrics-refresh", time.Minute)
	if !ok {
		t.Error("expected a different lock name to be independent")
	}
}

func TestLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	if ok, _ := a.Acquire(ctx, "recovery-sweeper", time.Minute); !ok {
		t.Fatal("expected acquire")
	}
	mr.FastForward(2 * time.Minute)

	if ok, _ := b.Acquire(ctx, "recovery-sweeper", time.Minute); !ok {
		t.Error("expected expired lock to be free")
	}
}

func TestLock_ReleaseOnlyByOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	if ok, _ := a.Acquire(ctx, "recovery-sweeper", time.Minute); !ok {
		t.Fatal("expected acquire")
	}

	if err := b.Release(ctx, "recovery-sweeper"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(lockPrefix + "recovery-sweeper") {
		t.Fatal("expected foreign release to leave the lock in place")
	}

	if err := a.Release(ctx, "recovery-sweeper"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(lockPrefix + "recovery-sweeper") {
		t.Error("expected owner release to delete the key")
	}

	if err := a.Release(ctx, "never-taken"); err != nil {
		t.Errorf("expected releasing an absent lock to succeed, got %v", err)
	}
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	if ok, _ := a.Acquire(ctx, "recovery-sweeper", time.Second); !ok {
		t.Fatal("expected acquire")
	}

	if err := a.Extend(ctx, "recovery-sweeper", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL(lockPrefix + "recovery-sweeper"); ttl < 30*time.Second {
		t.Errorf("expected ttl extended, got %v", ttl)
	}

	if err := b.Extend(ctx, "recovery-sweeper", time.Minute); err == nil {
		t.Error("expected extend by another owner to fail")
	}
	if err := a.Extend(ctx, "not-held", time.Minute); err == nil {
		t.Error("expected extend of an absent lock to fail")
	}
}

func TestLock_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail after shutdown")
	}
}
