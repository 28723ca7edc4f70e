package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryOrderLocker_BlocksUntilRelease(t *testing.T) {
	locker := NewMemoryOrderLocker()
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "ORDER-1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan LockHandle, 1)
	go func() {
		handle, err := locker.Acquire(ctx, "ORDER-1", time.Minute)
		if err != nil {
			return
		}
		acquired <- handle
	}()

	select {
	case <-acquired:
		t.Fatalf("expected second acquire to block")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case handle := <-acquired:
		_ = handle.Release(ctx)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected waiter to acquire after release")
	}
}

func TestMemoryOrderLocker_ContextDeadline(t *testing.T) {
	locker := NewMemoryOrderLocker()
	held, err := locker.Acquire(context.Background(), "ORDER-2", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "ORDER-2", time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryOrderLocker_ExpiredLeaseIsTakenOver(t *testing.T) {
	locker := NewMemoryOrderLocker()
	ctx := context.Background()
	stale, err := locker.Acquire(ctx, "ORDER-3", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	next, err := locker.Acquire(ctx, "ORDER-3", time.Minute)
	if err != nil {
		t.Fatalf("expected takeover after lease expiry: %v", err)
	}
	// The stale holder must not release the new lease.
	_ = stale.Release(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(waitCtx, "ORDER-3", time.Minute); err == nil {
		t.Fatalf("expected new lease to still be held")
	}
	_ = next.Release(ctx)
}

func TestMemoryOrderLocker_IndependentKeys(t *testing.T) {
	locker := NewMemoryOrderLocker()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a, err := locker.Acquire(ctx, "A", time.Minute)
	if err != nil {
		t.Fatalf("acquire A: %v", err)
	}
	b, err := locker.Acquire(ctx, "B", time.Minute)
	if err != nil {
		t.Fatalf("acquire B while A held: %v", err)
	}
	_ = a.Release(ctx)
	_ = b.Release(ctx)
	if _, err := locker.Acquire(ctx, " ", time.Minute); err == nil {
		t.Fatalf("expected empty order id to fail")
	}
}
