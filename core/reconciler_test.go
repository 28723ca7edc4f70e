package core

import (
	"context"
	"testing"
	"time"
)

func TestPendingReconciler_SweepsAbandonedAndReportsOrphans(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return base }
	correlator := newTestCorrelator(t, store)

	if err := correlator.Handle(ctx, EventKindOrderApproved,
		orderApprovedResource("ORDER-OLD", "A", "B", "a@example.com", "1.00")); err != nil {
		t.Fatalf("approval: %v", err)
	}
	if err := correlator.Handle(ctx, EventKindCaptureCompleted,
		captureCompletedResource("CAP-ORPHAN", "ORDER-ORPHAN", "2.00")); err != nil {
		t.Fatalf("capture: %v", err)
	}
	store.now = func() time.Time { return base.Add(70 * time.Hour) }
	if err := correlator.Handle(ctx, EventKindOrderApproved,
		orderApprovedResource("ORDER-FRESH", "C", "D", "c@example.com", "3.00")); err != nil {
		t.Fatalf("fresh approval: %v", err)
	}

	logger := newCaptureLogger()
	reconciler, err := NewPendingReconciler(store, nil, ReconcileConfig{PendingTTL: 48 * time.Hour}, logger,
		func() time.Time { return base.Add(72 * time.Hour) })
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	dry, err := reconciler.Reconcile(ctx, ReconcileRequest{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.Scanned != 2 || dry.Deleted != 0 || len(dry.Abandoned) != 1 {
		t.Fatalf("unexpected dry run report %#v", dry)
	}
	if _, found, _ := store.PendingOrders().Get(ctx, "ORDER-OLD"); !found {
		t.Fatalf("expected dry run to keep rows")
	}

	report, err := reconciler.Reconcile(ctx, ReconcileRequest{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Deleted != 1 || report.Abandoned[0] != "ORDER-OLD" {
		t.Fatalf("expected ORDER-OLD to be removed, got %#v", report)
	}
	if len(report.OrphanedCaptures) != 1 || report.OrphanedCaptures[0] != "ORDER-ORPHAN" {
		t.Fatalf("expected orphaned capture report, got %#v", report.OrphanedCaptures)
	}
	if _, found, _ := store.PendingOrders().Get(ctx, "ORDER-OLD"); found {
		t.Fatalf("expected abandoned row to be deleted")
	}
	if _, found, _ := store.PendingOrders().Get(ctx, "ORDER-ORPHAN"); !found {
		t.Fatalf("expected orphaned capture to be kept")
	}
	if _, found, _ := store.PendingOrders().Get(ctx, "ORDER-FRESH"); !found {
		t.Fatalf("expected fresh row to be kept")
	}
	if _, ok := findLog(logger.snapshot(), "warn", "captured payment has no donor details"); !ok {
		t.Fatalf("expected orphaned capture warning")
	}
}

func TestPendingReconciler_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return base }
	for _, id := range []string{"O1", "O2", "O3"} {
		status := PendingStatusPending
		name := "x"
		if _, err := store.PendingOrders().UpsertMerge(ctx, id, PendingOrderPatch{Status: &status, DonorName: &name}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	reconciler, err := NewPendingReconciler(store, NewMemoryOrderLocker(), ReconcileConfig{}, nil,
		func() time.Time { return base.Add(100 * time.Hour) })
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	report, err := reconciler.Reconcile(ctx, ReconcileRequest{Limit: 2})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Scanned != 2 || report.Deleted != 2 {
		t.Fatalf("expected limit of 2, got %#v", report)
	}
}

func TestPendingReconciler_OrphansDoNotStarveAbandonedApprovals(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return base }
	correlator := newTestCorrelator(t, store)

	if err := correlator.Handle(ctx, EventKindOrderApproved,
		orderApprovedResource("ABANDONED", "A", "B", "a@example.com", "1.00")); err != nil {
		t.Fatalf("approval: %v", err)
	}
	store.now = func() time.Time { return base.Add(time.Minute) }
	for _, id := range []string{"ORPH-1", "ORPH-2", "ORPH-3"} {
		if err := correlator.Handle(ctx, EventKindCaptureCompleted,
			captureCompletedResource("CAP-"+id, id, "2.00")); err != nil {
			t.Fatalf("capture %s: %v", id, err)
		}
	}

	reconciler, err := NewPendingReconciler(store, nil, ReconcileConfig{PendingTTL: time.Hour, BatchSize: 2}, nil,
		func() time.Time { return base.Add(2 * time.Hour) })
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	report, err := reconciler.Reconcile(ctx, ReconcileRequest{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Deleted != 1 || len(report.Abandoned) != 1 || report.Abandoned[0] != "ABANDONED" {
		t.Fatalf("expected abandoned approval removed, got %#v", report)
	}
	if len(report.OrphanedCaptures) != 2 {
		t.Fatalf("expected orphan report capped by batch size, got %#v", report.OrphanedCaptures)
	}
	if _, found, _ := store.PendingOrders().Get(ctx, "ABANDONED"); found {
		t.Fatalf("expected abandoned row to be deleted")
	}
}

func TestServiceReconcilePending_RejectsNegativeRequest(t *testing.T) {
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.ReconcilePending(context.Background(), ReconcileRequest{Limit: -1})
	if err == nil {
		t.Fatalf("expected invalid request error")
	}
	if HTTPStatus(err) != 400 {
		t.Fatalf("expected 400, got %d", HTTPStatus(err))
	}
}
