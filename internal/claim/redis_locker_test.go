package claim

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/giftgate/giftbot/internal/membership"
	"github.com/giftgate/giftbot/internal/reward"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, "test:lock:", ttl), mr
}

func TestRedisLockerIsExclusivePerKey(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestRedisLocker(t, time.Minute)

	unlock, ok, err := locker.TryLock(ctx, "claim:1")
	if err != nil || !ok {
		t.Fatalf("expected first lock, ok=%v err=%v", ok, err)
	}
	if _, ok, err := locker.TryLock(ctx, "claim:1"); err != nil || ok {
		t.Fatalf("expected second lock on the same key to fail, ok=%v err=%v", ok, err)
	}
	otherUnlock, ok, err := locker.TryLock(ctx, "claim:2")
	if err != nil || !ok {
		t.Fatalf("expected lock on a different key, ok=%v err=%v", ok, err)
	}
	otherUnlock()

	if !mr.Exists("test:lock:claim:1") {
		t.Fatalf("expected namespaced key to be held")
	}
	if ttl := mr.TTL("test:lock:claim:1"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	unlock()
	unlock()
	if mr.Exists("test:lock:claim:1") {
		t.Fatalf("expected key deleted on release")
	}
	again, ok, err := locker.TryLock(ctx, "claim:1")
	if err != nil || !ok {
		t.Fatalf("expected lock after release, ok=%v err=%v", ok, err)
	}
	again()
}

func TestRedisLockerExpiredHolderCannotReleaseNewHolder(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestRedisLocker(t, time.Second)

	staleUnlock, ok, err := locker.TryLock(ctx, "claim:7")
	if err != nil || !ok {
		t.Fatalf("expected first lock, ok=%v err=%v", ok, err)
	}
	mr.FastForward(2 * time.Second)
	if mr.Exists("test:lock:claim:7") {
		t.Fatalf("expected lock to expire after its ttl")
	}

	freshUnlock, ok, err := locker.TryLock(ctx, "claim:7")
	if err != nil || !ok {
		t.Fatalf("expected lock after expiry, ok=%v err=%v", ok, err)
	}
	staleUnlock()
	if !mr.Exists("test:lock:claim:7") {
		t.Fatalf("stale holder released a lock it no longer owns")
	}
	if _, ok, _ := locker.TryLock(ctx, "claim:7"); ok {
		t.Fatalf("expected the fresh holder to keep exclusivity")
	}

	freshUnlock()
	if mr.Exists("test:lock:claim:7") {
		t.Fatalf("expected fresh holder to release its lock")
	}
}

func TestRedisLockerReportsUnreachableServer(t *testing.T) {
	locker, mr := newTestRedisLocker(t, time.Minute)
	mr.Close()

	unlock, ok, err := locker.TryLock(context.Background(), "claim:1")
	if err == nil || ok || unlock != nil {
		t.Fatalf("expected an error from a closed server, ok=%v err=%v", ok, err)
	}
}

func TestCoordinatorBusyWhileAnotherInstanceHoldsRedisLock(t *testing.T) {
	ctx := context.Background()
	locker, _ := newTestRedisLocker(t, time.Minute)
	f := newFixture(t, "R1")

	unlock, ok, err := locker.TryLock(ctx, lockKey(11))
	if err != nil || !ok {
		t.Fatalf("expected lock, ok=%v err=%v", ok, err)
	}
	defer unlock()

	dispatcher := reward.NewDispatcher(f.sender, f.pool, reward.Options{})
	c := NewCoordinator(stubGate{status: membership.Member}, dispatcher, f.receipts, locker, Options{GrantOnce: true})
	if res := c.Claim(ctx, 11); res.Status != Busy {
		t.Fatalf("expected Busy while the lock is held elsewhere, got %s", res.Status)
	}
	if f.sender.messageCalls.Load() != 0 {
		t.Fatalf("expected no delivery while busy")
	}
}
