package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const displayPlaces = 2

var hundred = decimal.NewFromInt(100)

// ComputeProgress derives campaign progress from a ledger summary. The
// percentage is zero when no goal is configured.
func ComputeProgress(summary DonationSummary, goal decimal.Decimal, currency string) CampaignProgress {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	progress := CampaignProgress{
		Goal:       goal.Round(displayPlaces),
		Total:      summary.Total.Round(displayPlaces),
		Count:      summary.Count,
		Percentage: decimal.Zero,
		Currency:   currency,
	}
	if goal.Sign() > 0 {
		progress.Percentage = summary.Total.Div(goal).Mul(hundred).Round(displayPlaces)
	}
	return progress
}

// ComputeFeeQuote applies fee = amount * percentage / 100 + fixed.
func ComputeFeeQuote(amount decimal.Decimal, percentage decimal.Decimal, fixed decimal.Decimal, currency string) FeeQuote {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	fee := amount.Mul(percentage).Div(hundred).Add(fixed).Round(displayPlaces)
	return FeeQuote{
		Amount:   amount.Round(displayPlaces),
		Fee:      fee,
		Total:    amount.Add(fee).Round(displayPlaces),
		Currency: currency,
	}
}
