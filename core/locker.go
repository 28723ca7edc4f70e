package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultOrderLockTTL = 30 * time.Second

// MemoryOrderLocker is an in-process OrderLocker. Waiters block until the
// holder releases or its lease expires.
type MemoryOrderLocker struct {
	mu     sync.Mutex
	leases map[string]*orderLease
	nowFn  func() time.Time
}

type orderLease struct {
	owner    string
	expires  time.Time
	released chan struct{}
	once     sync.Once
}

func (l *orderLease) signal() {
	l.once.Do(func() {
		close(l.released)
	})
}

func NewMemoryOrderLocker() *MemoryOrderLocker {
	return &MemoryOrderLocker{
		leases: make(map[string]*orderLease),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryOrderLocker) Acquire(ctx context.Context, orderID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: order locker is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("core: order id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultOrderLockTTL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		l.mu.Lock()
		now := l.nowFn()
		current, held := l.leases[orderID]
		if !held || !now.Before(current.expires) {
			if held {
				current.signal()
			}
			lease := &orderLease{
				owner:    uuid.NewString(),
				expires:  now.Add(ttl),
				released: make(chan struct{}),
			}
			l.leases[orderID] = lease
			l.mu.Unlock()
			return &memoryOrderLockHandle{locker: l, orderID: orderID, owner: lease.owner}, nil
		}
		wait := current.released
		remaining := current.expires.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("core: order lock already held for %q: %w", orderID, ctx.Err())
		case <-wait:
		case <-timer.C:
		}
		timer.Stop()
	}
}

type memoryOrderLockHandle struct {
	locker  *MemoryOrderLocker
	orderID string
	owner   string
	once    sync.Once
}

func (h *memoryOrderLockHandle) Release(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		defer h.locker.mu.Unlock()
		lease, ok := h.locker.leases[h.orderID]
		if !ok || lease.owner != h.owner {
			return
		}
		delete(h.locker.leases, h.orderID)
		lease.signal()
	})
	return nil
}

var _ OrderLocker = (*MemoryOrderLocker)(nil)
