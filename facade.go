package donations

import (
	"fmt"
	"net/http"

	donationscommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/inbound"
	"github.com/goliatone/go-donations/providers/paypal"
	donationsquery "github.com/goliatone/go-donations/query"
	"github.com/goliatone/go-donations/webhooks"
	glog "github.com/goliatone/go-logger/glog"
)

type CommandQueryService interface {
	donationscommand.MutatingService
	inbound.ReadService
}

type Commands struct {
	HandleWebhookEvent *donationscommand.HandleWebhookEventCommand
	ReconcilePending   *donationscommand.ReconcilePendingCommand
}

type Queries struct {
	ListDonations *donationsquery.ListDonationsQuery
	GetDonation   *donationsquery.GetDonationQuery
	Progress      *donationsquery.CampaignProgressQuery
	QuoteFees     *donationsquery.QuoteFeesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("donations: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			HandleWebhookEvent: donationscommand.NewHandleWebhookEventCommand(service),
			ReconcilePending:   donationscommand.NewReconcilePendingCommand(service),
		},
		queries: Queries{
			ListDonations: donationsquery.NewListDonationsQuery(service),
			GetDonation:   donationsquery.NewGetDonationQuery(service),
			Progress:      donationsquery.NewCampaignProgressQuery(service),
			QuoteFees:     donationsquery.NewQuoteFeesQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// HTTPOptions configures the HTTP surface built by Facade.HTTPHandler.
type HTTPOptions struct {
	Router   inbound.RouterConfig
	Verifier core.SignatureVerifier
	// Ledger dedupes deliveries; nil falls back to an in-process ledger.
	Ledger webhooks.DeliveryLedger
	Logger core.Logger
}

// HTTPHandler wires the webhook processor and read endpoints over the facade.
func (f *Facade) HTTPHandler(opts HTTPOptions) (http.Handler, error) {
	if f == nil || f.service == nil {
		return nil, fmt.Errorf("donations: facade is not configured")
	}
	if opts.Verifier == nil {
		return nil, fmt.Errorf("donations: signature verifier is required")
	}
	logger := glog.Ensure(opts.Logger)
	ledger := opts.Ledger
	if ledger == nil {
		ledger = webhooks.NewMemoryDeliveryLedger()
	}

	processor := paypal.NewWebhookProcessor(opts.Verifier, ledger, f.commands.HandleWebhookEvent, logger)
	dispatcher := inbound.NewDispatcher(logger)
	if err := dispatcher.Register(inbound.NewWebhookHandler(processor)); err != nil {
		return nil, err
	}
	return inbound.NewRouter(opts.Router, dispatcher, f.service, logger).Handler(), nil
}
