package gocommand

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-command"
	donationscommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	donationsquery "github.com/goliatone/go-donations/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	"github.com/shopspring/decimal"
)

func newBusService(t *testing.T) *core.Service {
	t.Helper()
	svc, err := core.NewService(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func allHandlers(svc *core.Service) DonationHandlers {
	return DonationHandlers{
		HandleWebhookEvent: donationscommand.NewHandleWebhookEventCommand(svc),
		ReconcilePending:   donationscommand.NewReconcilePendingCommand(svc),
		ListDonations:      donationsquery.NewListDonationsQuery(svc),
		GetDonation:        donationsquery.NewGetDonationQuery(svc),
		Progress:           donationsquery.NewCampaignProgressQuery(svc),
		QuoteFees:          donationsquery.NewQuoteFeesQuery(svc),
	}
}

func TestBus_DispatchAndQuery(t *testing.T) {
	bus := NewBus(command.NewRegistry())
	subs, err := bus.Register(allHandlers(newBusService(t)))
	if err != nil {
		t.Fatalf("register donation handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 6 {
		t.Fatalf("expected 6 subscriptions, got %d", len(subs))
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	err = HandleWebhookEvent(ctx, core.WebhookEvent{
		ID:        "WH-10",
		EventType: core.EventKindCaptureCompleted,
		Resource: json.RawMessage(`{"id":"CAP-10","amount":{"currency_code":"USD","value":"12.00"},
			"supplementary_data":{"related_ids":{"order_id":"ORDER-10"}}}`),
	})
	if err != nil {
		t.Fatalf("dispatch capture: %v", err)
	}

	quote, err := QuoteFees(ctx, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("query fee quote: %v", err)
	}
	if !quote.Fee.Equal(decimal.RequireFromString("3.20")) {
		t.Fatalf("unexpected fee quote: %#v", quote)
	}

	page, err := ListDonations(ctx, core.DonationFilter{})
	if err != nil {
		t.Fatalf("query donations: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("capture without donor must not finalize, got %#v", page)
	}

	report, err := ReconcilePending(ctx, core.ReconcileRequest{DryRun: true})
	if err != nil {
		t.Fatalf("reconcile over bus: %v", err)
	}
	if !report.DryRun {
		t.Fatalf("expected dry-run report, got %#v", report)
	}
}

func TestBus_MirrorsCommandsIntoQueueRegistry(t *testing.T) {
	bus := NewBus(nil)
	queueRegistry := jobqueuecommand.NewRegistry()
	if err := bus.MirrorToQueue(queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	subs, err := bus.Register(DonationHandlers{
		ReconcilePending: donationscommand.NewReconcilePendingCommand(newBusService(t)),
	})
	if err != nil {
		t.Fatalf("register reconcile command: %v", err)
	}
	defer subs.Unsubscribe()
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if _, ok := queueRegistry.Get(donationscommand.TypeReconcilePending); !ok {
		t.Fatalf("expected reconcile command mirrored into queue registry")
	}
}

func TestBus_RequiresRegistry(t *testing.T) {
	var bus *Bus
	if _, err := bus.Register(DonationHandlers{}); err == nil {
		t.Fatalf("expected error for nil bus")
	}
	if err := bus.MirrorToQueue(jobqueuecommand.NewRegistry()); err == nil {
		t.Fatalf("expected error for nil bus")
	}
	if err := NewBus(nil).MirrorToQueue(nil); err == nil {
		t.Fatalf("expected error for nil queue registry")
	}
	subs, err := NewBus(nil).Register(DonationHandlers{})
	if err != nil || len(subs) != 0 {
		t.Fatalf("expected empty registration, got %d %v", len(subs), err)
	}
}
