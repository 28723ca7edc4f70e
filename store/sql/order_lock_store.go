package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultOrderLockTTL   = 30 * time.Second
	orderLockPollInitial  = 10 * time.Millisecond
	orderLockPollMaxDelay = 250 * time.Millisecond
)

// OrderLockStore is a lease based OrderLocker backed by donation_order_locks.
// It serializes work on one order across processes sharing the database.
type OrderLockStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewOrderLockStore(db *bun.DB) (*OrderLockStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &OrderLockStore{db: db, now: defaultNow}, nil
}

func (s *OrderLockStore) Acquire(ctx context.Context, orderID string, ttl time.Duration) (core.LockHandle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: order lock store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("sqlstore: order id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultOrderLockTTL
	}
	owner := uuid.NewString()
	delay := orderLockPollInitial
	for {
		acquired, err := s.tryAcquire(ctx, orderID, owner, ttl)
		if err != nil {
			return nil, err
		}
		if acquired {
			return &orderLockHandle{store: s, orderID: orderID, owner: owner}, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("sqlstore: order lock already held for %q: %w", orderID, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
		if delay > orderLockPollMaxDelay {
			delay = orderLockPollMaxDelay
		}
	}
}

func (s *OrderLockStore) tryAcquire(ctx context.Context, orderID string, owner string, ttl time.Duration) (bool, error) {
	now := s.now().UTC()
	record := &orderLockRecord{
		OrderID:   orderID,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (order_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return true, nil
	}

	// Take over a lease whose holder died without releasing it.
	res, err = s.db.NewUpdate().
		Model((*orderLockRecord)(nil)).
		Set("owner = ?", owner).
		Set("expires_at = ?", now.Add(ttl)).
		Where("order_id = ?", orderID).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

type orderLockHandle struct {
	store   *OrderLockStore
	orderID string
	owner   string
	once    sync.Once
	err     error
}

func (h *orderLockHandle) Release(ctx context.Context) error {
	if h == nil || h.store == nil {
		return nil
	}
	h.once.Do(func() {
		_, h.err = h.store.db.NewDelete().
			Model((*orderLockRecord)(nil)).
			Where("order_id = ?", h.orderID).
			Where("owner = ?", h.owner).
			Exec(ctx)
	})
	return h.err
}

var _ core.OrderLocker = (*OrderLockStore)(nil)
