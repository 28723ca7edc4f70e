package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDeliveryLedger is an in-process DeliveryLedger for single instance
// deployments and tests.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := l.now()
	key := providerID + ":" + deliveryID

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[key]
	if !exists {
		leaseUntil := now.Add(lease)
		record = DeliveryRecord{
			ID:            uuid.NewString(),
			ClaimID:       uuid.NewString(),
			ProviderID:    providerID,
			DeliveryID:    deliveryID,
			Status:        DeliveryStatusProcessing,
			Attempts:      1,
			NextAttemptAt: &leaseUntil,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		l.records[key] = record
		l.claims[record.ClaimID] = key
		return record, true, nil
	}

	if !IsClaimable(record, now) {
		return record, false, nil
	}
	delete(l.claims, record.ClaimID)
	leaseUntil := now.Add(lease)
	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = &leaseUntil
	record.UpdatedAt = now
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(providerID)+":"+strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	return record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	return l.update(claimID, func(record *DeliveryRecord, _ time.Time) {
		record.Status = DeliveryStatusProcessed
		record.NextAttemptAt = nil
		record.LastError = ""
	})
}

func (l *MemoryDeliveryLedger) Reject(_ context.Context, claimID string, textCode string) error {
	return l.update(claimID, func(record *DeliveryRecord, _ time.Time) {
		record.Status = DeliveryStatusRejected
		record.NextAttemptAt = nil
		record.LastError = strings.TrimSpace(textCode)
	})
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	return l.update(claimID, func(record *DeliveryRecord, _ time.Time) {
		if cause != nil {
			record.LastError = cause.Error()
		}
		if maxAttempts > 0 && record.Attempts >= maxAttempts {
			record.Status = DeliveryStatusDead
			record.NextAttemptAt = nil
			return
		}
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	})
}

func (l *MemoryDeliveryLedger) update(claimID string, mutate func(record *DeliveryRecord, now time.Time)) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return fmt.Errorf("webhooks: delivery claim %q not found", claimID)
	}
	record := l.records[key]
	if record.ClaimID != claimID {
		return fmt.Errorf("webhooks: delivery claim %q is stale", claimID)
	}
	now := l.now()
	mutate(&record, now)
	record.UpdatedAt = now
	l.records[key] = record
	return nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// IsClaimable reports whether a known delivery may be processed again: it
// failed before, or its processing lease ran out.
func IsClaimable(record DeliveryRecord, now time.Time) bool {
	switch record.Status {
	case DeliveryStatusRetryReady:
		return true
	case DeliveryStatusProcessing:
		return record.NextAttemptAt == nil || !now.Before(*record.NextAttemptAt)
	default:
		return false
	}
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
