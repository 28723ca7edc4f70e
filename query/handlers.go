package query

import (
	"context"

	"github.com/goliatone/go-donations/core"
	"github.com/shopspring/decimal"
)

type DonationReader interface {
	ListDonations(ctx context.Context, filter core.DonationFilter) (core.DonationPage, error)
	GetDonation(ctx context.Context, transactionID string) (core.Donation, error)
}

type ProgressReader interface {
	Progress(ctx context.Context) (core.CampaignProgress, error)
}

type FeeQuoter interface {
	QuoteFees(amount decimal.Decimal) core.FeeQuote
}

type ListDonationsQuery struct {
	reader DonationReader
}

func NewListDonationsQuery(reader DonationReader) *ListDonationsQuery {
	return &ListDonationsQuery{reader: reader}
}

func (q *ListDonationsQuery) Query(ctx context.Context, msg ListDonationsMessage) (core.DonationPage, error) {
	if q == nil || q.reader == nil {
		return core.DonationPage{}, queryDependencyError("query: donation reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.DonationPage{}, err
	}
	return q.reader.ListDonations(ctx, msg.Filter)
}

type GetDonationQuery struct {
	reader DonationReader
}

func NewGetDonationQuery(reader DonationReader) *GetDonationQuery {
	return &GetDonationQuery{reader: reader}
}

func (q *GetDonationQuery) Query(ctx context.Context, msg GetDonationMessage) (core.Donation, error) {
	if q == nil || q.reader == nil {
		return core.Donation{}, queryDependencyError("query: donation reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Donation{}, err
	}
	return q.reader.GetDonation(ctx, msg.TransactionID)
}

type CampaignProgressQuery struct {
	reader ProgressReader
}

func NewCampaignProgressQuery(reader ProgressReader) *CampaignProgressQuery {
	return &CampaignProgressQuery{reader: reader}
}

func (q *CampaignProgressQuery) Query(ctx context.Context, _ CampaignProgressMessage) (core.CampaignProgress, error) {
	if q == nil || q.reader == nil {
		return core.CampaignProgress{}, queryDependencyError("query: progress reader is required")
	}
	return q.reader.Progress(ctx)
}

type QuoteFeesQuery struct {
	quoter FeeQuoter
}

func NewQuoteFeesQuery(quoter FeeQuoter) *QuoteFeesQuery {
	return &QuoteFeesQuery{quoter: quoter}
}

func (q *QuoteFeesQuery) Query(_ context.Context, msg QuoteFeesMessage) (core.FeeQuote, error) {
	if q == nil || q.quoter == nil {
		return core.FeeQuote{}, queryDependencyError("query: fee quoter is required")
	}
	if err := msg.Validate(); err != nil {
		return core.FeeQuote{}, err
	}
	return q.quoter.QuoteFees(msg.Amount), nil
}
