package inbound

import (
	"time"

	"github.com/goliatone/go-donations/core"
)

type DonationResponse struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       string    `json:"order_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	DonorName     string    `json:"donor_name"`
	DonorEmail    string    `json:"donor_email"`
	DonorAddress  string    `json:"donor_address"`
	CreatedAt     time.Time `json:"created_at"`
}

type DonationPageResponse struct {
	Items   []DonationResponse `json:"items"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	Total   int                `json:"total"`
}

type ProgressResponse struct {
	Goal       string `json:"goal"`
	Total      string `json:"total"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
	Currency   string `json:"currency"`
}

type FeeQuoteResponse struct {
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

func NewDonationResponse(donation core.Donation) DonationResponse {
	return DonationResponse{
		TransactionID: donation.TransactionID,
		OrderID:       donation.OrderID,
		Amount:        donation.Amount.StringFixed(2),
		Currency:      donation.Currency,
		DonorName:     donation.DonorName,
		DonorEmail:    donation.DonorEmail,
		DonorAddress:  donation.DonorAddress.Format(),
		CreatedAt:     donation.CreatedAt,
	}
}

func NewDonationPageResponse(page core.DonationPage) DonationPageResponse {
	items := make([]DonationResponse, 0, len(page.Items))
	for _, donation := range page.Items {
		items = append(items, NewDonationResponse(donation))
	}
	return DonationPageResponse{
		Items:   items,
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
	}
}

func NewProgressResponse(progress core.CampaignProgress) ProgressResponse {
	return ProgressResponse{
		Goal:       progress.Goal.StringFixed(2),
		Total:      progress.Total.StringFixed(2),
		Count:      progress.Count,
		Percentage: progress.Percentage.StringFixed(2),
		Currency:   progress.Currency,
	}
}

func NewFeeQuoteResponse(quote core.FeeQuote) FeeQuoteResponse {
	return FeeQuoteResponse{
		Amount:   quote.Amount.StringFixed(2),
		Fee:      quote.Fee.StringFixed(2),
		Total:    quote.Total.StringFixed(2),
		Currency: quote.Currency,
	}
}
