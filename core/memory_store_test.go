package core

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMemoryStore_UpsertMergeKeepsEarlierFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	name := "Ada"
	amount := decimal.RequireFromString("5.00")
	first, err := store.PendingOrders().UpsertMerge(ctx, "O1", PendingOrderPatch{DonorName: &name, Amount: &amount})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	status := PendingStatusPendingCapture
	second, err := store.PendingOrders().UpsertMerge(ctx, "O1", PendingOrderPatch{Status: &status, CaptureData: []byte(`{"id":"C"}`)})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected same row identity")
	}
	if second.DonorName == nil || *second.DonorName != "Ada" {
		t.Fatalf("expected donor name to survive merge")
	}
	if !second.Amount.Equal(amount) {
		t.Fatalf("expected amount to survive merge")
	}
	if !second.HasCapture() {
		t.Fatalf("expected capture data")
	}

	bad := PendingStatus("bogus")
	if _, err := store.PendingOrders().UpsertMerge(ctx, "O1", PendingOrderPatch{Status: &bad}); err == nil {
		t.Fatalf("expected invalid status error")
	}
}

func TestMemoryStore_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sentinel := errors.New("abort")

	err := store.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := uow.Donations().InsertIfAbsent(ctx, Donation{TransactionID: "T1", Amount: decimal.NewFromInt(1)}); err != nil {
			return err
		}
		if _, err := uow.PendingOrders().UpsertMerge(ctx, "O1", PendingOrderPatch{}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if _, err := store.Donations().Get(ctx, "T1"); !errors.Is(err, ErrDonationNotFound) {
		t.Fatalf("expected donation to be rolled back, got %v", err)
	}
	if _, found, _ := store.PendingOrders().Get(ctx, "O1"); found {
		t.Fatalf("expected pending row to be rolled back")
	}
}

func TestMemoryStore_InsertIfAbsentAndSummary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ledger := store.Donations()

	outcome, err := ledger.InsertIfAbsent(ctx, Donation{TransactionID: "T1", Amount: decimal.RequireFromString("10.50")})
	if err != nil || outcome != InsertOutcomeInserted {
		t.Fatalf("expected insert, got %q %v", outcome, err)
	}
	outcome, err = ledger.InsertIfAbsent(ctx, Donation{TransactionID: "T1", Amount: decimal.RequireFromString("99")})
	if err != nil || outcome != InsertOutcomeAlreadyExists {
		t.Fatalf("expected already_exists, got %q %v", outcome, err)
	}
	if _, err := ledger.InsertIfAbsent(ctx, Donation{}); err == nil {
		t.Fatalf("expected missing transaction id error")
	}
	summary, err := ledger.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 1 || !summary.Total.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("unexpected summary %#v", summary)
	}
	page, err := ledger.List(ctx, DonationFilter{Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 0 {
		t.Fatalf("expected empty second page, got %#v", page)
	}
}
