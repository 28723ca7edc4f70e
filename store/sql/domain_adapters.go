package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/webhooks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newPendingOrderRecord(orderID string, now time.Time) *pendingOrderRecord {
	return &pendingOrderRecord{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Amount:    decimal.Zero,
		Currency:  core.DefaultCurrency,
		Status:    string(core.PendingStatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *pendingOrderRecord) toDomain() core.PendingOrder {
	if r == nil {
		return core.PendingOrder{}
	}
	out := core.PendingOrder{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Status:    core.PendingStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.DonorName != nil {
		value := *r.DonorName
		out.DonorName = &value
	}
	if r.DonorEmail != nil {
		value := *r.DonorEmail
		out.DonorEmail = &value
	}
	if r.DonorAddress != nil {
		value := *r.DonorAddress
		out.DonorAddress = &value
	}
	if r.CaptureData != nil && *r.CaptureData != "" {
		out.CaptureData = []byte(*r.CaptureData)
	}
	return out
}

// applyPatch writes the merged domain row back onto the record.
func (r *pendingOrderRecord) applyPatch(patch core.PendingOrderPatch, now time.Time) {
	merged := r.toDomain()
	patch.Apply(&merged)
	r.DonorName = merged.DonorName
	r.DonorEmail = merged.DonorEmail
	r.DonorAddress = merged.DonorAddress
	r.Amount = merged.Amount
	r.Currency = strings.TrimSpace(merged.Currency)
	if r.Currency == "" {
		r.Currency = core.DefaultCurrency
	}
	r.Status = string(merged.Status)
	if len(merged.CaptureData) > 0 {
		value := string(merged.CaptureData)
		r.CaptureData = &value
	}
	r.UpdatedAt = now
}

func newDonationRecord(in core.Donation, now time.Time) *donationRecord {
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = now
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = core.DefaultCurrency
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return &donationRecord{
		ID:            id,
		TransactionID: strings.TrimSpace(in.TransactionID),
		OrderID:       strings.TrimSpace(in.OrderID),
		Amount:        in.Amount,
		Currency:      currency,
		DonorName:     in.DonorName,
		DonorEmail:    in.DonorEmail,
		DonorAddress:  in.DonorAddress,
		CreatedAt:     createdAt,
	}
}

func (r *donationRecord) toDomain() core.Donation {
	if r == nil {
		return core.Donation{}
	}
	return core.Donation{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		OrderID:       r.OrderID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		DonorName:     r.DonorName,
		DonorEmail:    r.DonorEmail,
		DonorAddress:  r.DonorAddress,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func (r *webhookDeliveryRecord) toDomain() webhooks.DeliveryRecord {
	if r == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		DeliveryID: r.DeliveryID,
		Status:     r.Status,
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.ClaimID != nil {
		result.ClaimID = *r.ClaimID
	}
	if r.NextAttemptAt != nil {
		value := r.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	return result
}
