package query

import (
	"strings"

	"github.com/goliatone/go-donations/core"
	"github.com/shopspring/decimal"
)

const (
	TypeListDonations    = "donations.query.donations.list"
	TypeGetDonation      = "donations.query.donations.get"
	TypeCampaignProgress = "donations.query.campaign.progress"
	TypeQuoteFees        = "donations.query.fees.quote"
)

type ListDonationsMessage struct {
	Filter core.DonationFilter
}

func (ListDonationsMessage) Type() string { return TypeListDonations }

func (m ListDonationsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type GetDonationMessage struct {
	TransactionID string
}

func (GetDonationMessage) Type() string { return TypeGetDonation }

func (m GetDonationMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return queryValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

type CampaignProgressMessage struct{}

func (CampaignProgressMessage) Type() string { return TypeCampaignProgress }

func (CampaignProgressMessage) Validate() error { return nil }

type QuoteFeesMessage struct {
	Amount decimal.Decimal
}

func (QuoteFeesMessage) Type() string { return TypeQuoteFees }

func (m QuoteFeesMessage) Validate() error {
	if m.Amount.IsNegative() {
		return queryValidationError("amount", "amount must be >= 0")
	}
	return nil
}
