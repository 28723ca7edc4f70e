package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// PendingReconciler sweeps pending rows that never completed. Approvals that
// were never captured are removed. Captures without donor data are reported
// and kept for an operator.
type PendingReconciler struct {
	stores    StoreProvider
	locker    OrderLocker
	lockTTL   time.Duration
	logger    Logger
	now       func() time.Time
	ttl       time.Duration
	batchSize int
}

func NewPendingReconciler(stores StoreProvider, locker OrderLocker, cfg ReconcileConfig, logger Logger, now func() time.Time) (*PendingReconciler, error) {
	if stores == nil {
		return nil, fmt.Errorf("core: reconciler store provider is required")
	}
	if locker == nil {
		locker = NewMemoryOrderLocker()
	}
	if now == nil {
		now = defaultNow
	}
	defaults := DefaultConfig().Reconcile
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaults.PendingTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	return &PendingReconciler{
		stores:    stores,
		locker:    locker,
		lockTTL:   cfg.LockTTL,
		logger:    glog.Ensure(logger),
		now:       now,
		ttl:       cfg.PendingTTL,
		batchSize: cfg.BatchSize,
	}, nil
}

func (r *PendingReconciler) Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileReport, error) {
	if r == nil || r.stores == nil {
		return ReconcileReport{}, fmt.Errorf("core: reconciler is not configured")
	}
	olderThan := req.OlderThan
	if olderThan <= 0 {
		olderThan = r.ttl
	}
	limit := req.Limit
	if limit <= 0 {
		limit = r.batchSize
	}
	report := ReconcileReport{
		Cutoff:           r.now().UTC().Add(-olderThan),
		DryRun:           req.DryRun,
		Abandoned:        []string{},
		OrphanedCaptures: []string{},
	}

	// Orphaned captures are kept, so they get their own scan and never
	// crowd abandoned approvals out of a batch.
	abandoned, err := r.stores.PendingOrders().ListStale(ctx, StaleQuery{Before: report.Cutoff, Limit: limit})
	if err != nil {
		return ReconcileReport{}, persistenceFailure("list abandoned pending orders", err)
	}
	orphans, err := r.stores.PendingOrders().ListStale(ctx, StaleQuery{Before: report.Cutoff, Captured: true, Limit: limit})
	if err != nil {
		return ReconcileReport{}, persistenceFailure("list orphaned captures", err)
	}
	report.Scanned = len(abandoned) + len(orphans)

	for _, row := range orphans {
		report.OrphanedCaptures = append(report.OrphanedCaptures, row.OrderID)
		r.logger.Warn("captured payment has no donor details",
			"order_id", row.OrderID,
			"created_at", row.CreatedAt,
		)
	}
	for _, row := range abandoned {
		report.Abandoned = append(report.Abandoned, row.OrderID)
		if req.DryRun {
			continue
		}
		deleted, err := r.deleteAbandoned(ctx, row.OrderID, report.Cutoff)
		if err != nil {
			return report, err
		}
		if deleted {
			report.Deleted++
		}
	}
	return report, nil
}

// deleteAbandoned re-reads the row under the order lock so a capture that
// arrived after the scan is never dropped.
func (r *PendingReconciler) deleteAbandoned(ctx context.Context, orderID string, cutoff time.Time) (bool, error) {
	handle, err := r.locker.Acquire(ctx, orderID, r.lockTTL)
	if err != nil {
		return false, NewLockTimeoutError(orderID, err)
	}
	defer func() {
		if releaseErr := handle.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			r.logger.Warn("order lock release failed", "order_id", orderID, "error", releaseErr)
		}
	}()

	deleted := false
	err = r.stores.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		row, found, err := uow.PendingOrders().Get(ctx, orderID)
		if err != nil {
			return persistenceFailure("read pending order", err)
		}
		if !found || row.HasCapture() || !row.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := uow.PendingOrders().Delete(ctx, orderID); err != nil {
			return persistenceFailure("delete pending order", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		r.logger.Info("abandoned pending order removed", "order_id", orderID)
	}
	return deleted, nil
}
