package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-donations/core"
)

var (
	_ gocmd.Querier[ListDonationsMessage, core.DonationPage]        = (*ListDonationsQuery)(nil)
	_ gocmd.Querier[GetDonationMessage, core.Donation]              = (*GetDonationQuery)(nil)
	_ gocmd.Querier[CampaignProgressMessage, core.CampaignProgress] = (*CampaignProgressQuery)(nil)
	_ gocmd.Querier[QuoteFeesMessage, core.FeeQuote]                = (*QuoteFeesQuery)(nil)
	_ DonationReader                                                = (*core.Service)(nil)
	_ ProgressReader                                                = (*core.Service)(nil)
	_ FeeQuoter                                                     = (*core.Service)(nil)
)
