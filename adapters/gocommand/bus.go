// Package gocommand exposes the donation commands and queries on the
// go-command dispatcher and, optionally, mirrors them into a go-job queue
// registry.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	donationscommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	donationsquery "github.com/goliatone/go-donations/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	"github.com/shopspring/decimal"
)

// QueueResolverKey names the registry resolver that mirrors donation
// commands into a go-job queue registry.
const QueueResolverKey = "donations.queue"

// DonationHandlers is the set of donation commands and queries exposed on the
// bus. Nil entries are skipped.
type DonationHandlers struct {
	HandleWebhookEvent command.Commander[donationscommand.HandleWebhookEventMessage]
	ReconcilePending   command.Commander[donationscommand.ReconcilePendingMessage]

	ListDonations command.Querier[donationsquery.ListDonationsMessage, core.DonationPage]
	GetDonation   command.Querier[donationsquery.GetDonationMessage, core.Donation]
	Progress      command.Querier[donationsquery.CampaignProgressMessage, core.CampaignProgress]
	QuoteFees     command.Querier[donationsquery.QuoteFeesMessage, core.FeeQuote]
}

// Subscriptions tracks dispatcher subscriptions so they can be dropped together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// Bus owns the go-command registry the donation handlers are recorded in.
// Subscriptions go to the process wide dispatcher.
type Bus struct {
	registry *command.Registry
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// MirrorToQueue makes Initialize copy every registered command into
// queueRegistry so go-job workers can execute them.
func (b *Bus) MirrorToQueue(queueRegistry *jobqueuecommand.Registry) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return b.registry.AddResolver(QueueResolverKey, jobqueuecommand.QueueResolver(queueRegistry))
}

func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.Initialize()
}

// Register records and subscribes every configured handler. On failure the
// subscriptions made so far are removed.
func (b *Bus) Register(handlers DonationHandlers, runnerOpts ...runner.Option) (Subscriptions, error) {
	if b == nil || b.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	subs := Subscriptions{}
	add := func(sub commanddispatcher.Subscription, handler any) error {
		if err := b.registry.RegisterCommand(handler); err != nil {
			sub.Unsubscribe()
			subs.Unsubscribe()
			return fmt.Errorf("gocommand: register %T: %w", handler, err)
		}
		subs = append(subs, sub)
		return nil
	}

	if h := handlers.HandleWebhookEvent; h != nil {
		if err := add(commanddispatcher.SubscribeCommand(h, runnerOpts...), h); err != nil {
			return nil, err
		}
	}
	if h := handlers.ReconcilePending; h != nil {
		if err := add(commanddispatcher.SubscribeCommand(h, runnerOpts...), h); err != nil {
			return nil, err
		}
	}
	if h := handlers.ListDonations; h != nil {
		if err := add(commanddispatcher.SubscribeQuery(h, runnerOpts...), h); err != nil {
			return nil, err
		}
	}
	if h := handlers.GetDonation; h != nil {
		if err := add(commanddispatcher.SubscribeQuery(h, runnerOpts...), h); err != nil {
			return nil, err
		}
	}
	if h := handlers.Progress; h != nil {
		if err := add(commanddispatcher.SubscribeQuery(h, runnerOpts...), h); err != nil {
			return nil, err
		}
	}
	if h := handlers.QuoteFees; h != nil {
		if err := add(commanddispatcher.SubscribeQuery(h, runnerOpts...), h); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// HandleWebhookEvent dispatches a verified event to the subscribed handler.
func HandleWebhookEvent(ctx context.Context, event core.WebhookEvent) error {
	return commanddispatcher.Dispatch(ctx, donationscommand.HandleWebhookEventMessage{Event: event})
}

// ReconcilePending dispatches a sweep and returns the report the handler
// stored in the context result collector.
func ReconcilePending(ctx context.Context, req core.ReconcileRequest) (core.ReconcileReport, error) {
	collector := command.NewResult[core.ReconcileReport]()
	err := commanddispatcher.Dispatch(
		command.ContextWithResult(ctx, collector),
		donationscommand.ReconcilePendingMessage{Request: req},
	)
	if err != nil {
		return core.ReconcileReport{}, err
	}
	report, _ := collector.Load()
	return report, nil
}

func ListDonations(ctx context.Context, filter core.DonationFilter) (core.DonationPage, error) {
	return commanddispatcher.Query[donationsquery.ListDonationsMessage, core.DonationPage](
		ctx, donationsquery.ListDonationsMessage{Filter: filter},
	)
}

func GetDonation(ctx context.Context, transactionID string) (core.Donation, error) {
	return commanddispatcher.Query[donationsquery.GetDonationMessage, core.Donation](
		ctx, donationsquery.GetDonationMessage{TransactionID: strings.TrimSpace(transactionID)},
	)
}

func CampaignProgress(ctx context.Context) (core.CampaignProgress, error) {
	return commanddispatcher.Query[donationsquery.CampaignProgressMessage, core.CampaignProgress](
		ctx, donationsquery.CampaignProgressMessage{},
	)
}

func QuoteFees(ctx context.Context, amount decimal.Decimal) (core.FeeQuote, error) {
	return commanddispatcher.Query[donationsquery.QuoteFeesMessage, core.FeeQuote](
		ctx, donationsquery.QuoteFeesMessage{Amount: amount},
	)
}
