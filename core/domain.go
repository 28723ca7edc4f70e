package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPendingOrderNotFound = errors.New("core: pending order not found")
	ErrDonationNotFound     = errors.New("core: donation not found")
	ErrOrderLockHeld        = errors.New("core: order lock already held")
)

// PayPal webhook event kinds.
const (
	EventKindOrderApproved        = "CHECKOUT.ORDER.APPROVED"
	EventKindCaptureCompleted     = "PAYMENT.CAPTURE.COMPLETED"
	EventKindAuthorizationCreated = "PAYMENT.AUTHORIZATION.CREATED"
)

const (
	DefaultCurrency  = "USD"
	NotAvailable     = "N/A"
	ProviderIDPayPal = "paypal"
)

type PendingStatus string

const (
	PendingStatusPending        PendingStatus = "pending"
	PendingStatusPendingCapture PendingStatus = "pending_capture"
)

func (s PendingStatus) Valid() bool {
	switch s {
	case PendingStatusPending, PendingStatusPendingCapture:
		return true
	default:
		return false
	}
}

// DonorAddress mirrors the PayPal shipping address subset kept for display.
type DonorAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

func (a DonorAddress) IsEmpty() bool {
	return a == DonorAddress{}
}

// Format joins the non-empty address parts with ", ", or returns "N/A".
func (a DonorAddress) Format() string {
	parts := make([]string, 0, 5)
	for _, part := range []string{a.AddressLine1, a.AdminArea2, a.AdminArea1, a.PostalCode, a.CountryCode} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return NotAvailable
	}
	return strings.Join(parts, ", ")
}

type DonorInfo struct {
	Name    string
	Email   string
	Address DonorAddress
}

type PendingOrder struct {
	ID           string
	OrderID      string
	DonorName    *string
	DonorEmail   *string
	DonorAddress *DonorAddress
	Amount       decimal.Decimal
	Currency     string
	Status       PendingStatus
	CaptureData  []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasDonor reports whether the order-approved half has been merged.
func (p PendingOrder) HasDonor() bool {
	return p.DonorName != nil || p.DonorEmail != nil || p.DonorAddress != nil
}

func (p PendingOrder) HasCapture() bool {
	return len(p.CaptureData) > 0
}

// Donor returns the stored donor fields with display defaults applied.
func (p PendingOrder) Donor() DonorInfo {
	info := DonorInfo{Name: NotAvailable, Email: NotAvailable}
	if p.DonorName != nil && strings.TrimSpace(*p.DonorName) != "" {
		info.Name = *p.DonorName
	}
	if p.DonorEmail != nil && strings.TrimSpace(*p.DonorEmail) != "" {
		info.Email = *p.DonorEmail
	}
	if p.DonorAddress != nil {
		info.Address = *p.DonorAddress
	}
	return info
}

// PendingOrderPatch carries the fields supplied by a single event. Nil fields
// are left untouched by UpsertMerge.
type PendingOrderPatch struct {
	DonorName    *string
	DonorEmail   *string
	DonorAddress *DonorAddress
	Amount       *decimal.Decimal
	Currency     *string
	Status       *PendingStatus
	CaptureData  []byte
}

func (p PendingOrderPatch) IsEmpty() bool {
	return p.DonorName == nil &&
		p.DonorEmail == nil &&
		p.DonorAddress == nil &&
		p.Amount == nil &&
		p.Currency == nil &&
		p.Status == nil &&
		len(p.CaptureData) == 0
}

// Apply merges the patch into order in place.
func (p PendingOrderPatch) Apply(order *PendingOrder) {
	if order == nil {
		return
	}
	if p.DonorName != nil {
		order.DonorName = cloneString(p.DonorName)
	}
	if p.DonorEmail != nil {
		order.DonorEmail = cloneString(p.DonorEmail)
	}
	if p.DonorAddress != nil {
		address := *p.DonorAddress
		order.DonorAddress = &address
	}
	if p.Amount != nil {
		order.Amount = *p.Amount
	}
	if p.Currency != nil {
		order.Currency = *p.Currency
	}
	if p.Status != nil {
		order.Status = *p.Status
	}
	if len(p.CaptureData) > 0 {
		order.CaptureData = append([]byte(nil), p.CaptureData...)
	}
}

type Donation struct {
	ID            string
	TransactionID string
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	DonorName     string
	DonorEmail    string
	DonorAddress  DonorAddress
	CreatedAt     time.Time
}

type InsertOutcome string

const (
	InsertOutcomeInserted      InsertOutcome = "inserted"
	InsertOutcomeAlreadyExists InsertOutcome = "already_exists"
)

type DonationFilter struct {
	Page    int
	PerPage int
}

func (f DonationFilter) Normalize() DonationFilter {
	out := f
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PerPage <= 0 {
		out.PerPage = 50
	}
	if out.PerPage > 500 {
		out.PerPage = 500
	}
	return out
}

func (f DonationFilter) Offset() int {
	normalized := f.Normalize()
	return (normalized.Page - 1) * normalized.PerPage
}

type DonationPage struct {
	Items   []Donation
	Page    int
	PerPage int
	Total   int
}

type DonationSummary struct {
	Total decimal.Decimal
	Count int
}

type CampaignProgress struct {
	Goal       decimal.Decimal
	Total      decimal.Decimal
	Count      int
	Percentage decimal.Decimal
	Currency   string
}

type FeeQuote struct {
	Amount   decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

type ReconcileRequest struct {
	OlderThan time.Duration
	Limit     int
	DryRun    bool
}

type ReconcileReport struct {
	Cutoff           time.Time
	Scanned          int
	Abandoned        []string
	OrphanedCaptures []string
	Deleted          int
	DryRun           bool
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func stringPtr(value string) *string {
	return &value
}
