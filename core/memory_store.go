package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process StoreProvider. RunInTx holds the store lock for
// the whole callback and restores a snapshot when the callback fails.
type MemoryStore struct {
	mu        sync.Mutex
	pending   map[string]PendingOrder
	donations map[string]memoryDonation
	seq       int64
	now       func() time.Time
}

type memoryDonation struct {
	donation Donation
	seq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:   map[string]PendingOrder{},
		donations: map[string]memoryDonation{},
		now:       defaultNow,
	}
}

func (s *MemoryStore) PendingOrders() PendingOrderStore {
	return memoryPendingOrders{store: s, locked: false}
}

func (s *MemoryStore) Donations() DonationLedger {
	return memoryDonations{store: s, locked: false}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	if s == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingSnapshot := make(map[string]PendingOrder, len(s.pending))
	for key, value := range s.pending {
		pendingSnapshot[key] = clonePendingOrder(value)
	}
	donationSnapshot := make(map[string]memoryDonation, len(s.donations))
	for key, value := range s.donations {
		donationSnapshot[key] = value
	}
	seqSnapshot := s.seq

	if err := fn(ctx, memoryUnitOfWork{store: s}); err != nil {
		s.pending = pendingSnapshot
		s.donations = donationSnapshot
		s.seq = seqSnapshot
		return err
	}
	return nil
}

type memoryUnitOfWork struct {
	store *MemoryStore
}

func (u memoryUnitOfWork) PendingOrders() PendingOrderStore {
	return memoryPendingOrders{store: u.store, locked: true}
}

func (u memoryUnitOfWork) Donations() DonationLedger {
	return memoryDonations{store: u.store, locked: true}
}

// locked is true when the caller already holds the store lock through RunInTx.
type memoryPendingOrders struct {
	store  *MemoryStore
	locked bool
}

func (m memoryPendingOrders) acquire() func() {
	if m.locked {
		return func() {}
	}
	m.store.mu.Lock()
	return m.store.mu.Unlock
}

func (m memoryPendingOrders) UpsertMerge(_ context.Context, orderID string, patch PendingOrderPatch) (PendingOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PendingOrder{}, fmt.Errorf("core: pending order id is required")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return PendingOrder{}, fmt.Errorf("core: invalid pending status %q", *patch.Status)
	}
	release := m.acquire()
	defer release()

	now := m.store.now().UTC()
	row, exists := m.store.pending[orderID]
	if !exists {
		row = PendingOrder{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			Amount:    decimal.Zero,
			Currency:  DefaultCurrency,
			Status:    PendingStatusPending,
			CreatedAt: now,
		}
	}
	patch.Apply(&row)
	row.UpdatedAt = now
	m.store.pending[orderID] = row
	return clonePendingOrder(row), nil
}

func (m memoryPendingOrders) Get(_ context.Context, orderID string) (PendingOrder, bool, error) {
	release := m.acquire()
	defer release()
	row, ok := m.store.pending[strings.TrimSpace(orderID)]
	if !ok {
		return PendingOrder{}, false, nil
	}
	return clonePendingOrder(row), true, nil
}

func (m memoryPendingOrders) Delete(_ context.Context, orderID string) error {
	release := m.acquire()
	defer release()
	delete(m.store.pending, strings.TrimSpace(orderID))
	return nil
}

func (m memoryPendingOrders) ListStale(_ context.Context, query StaleQuery) ([]PendingOrder, error) {
	release := m.acquire()
	defer release()
	out := make([]PendingOrder, 0)
	for _, row := range m.store.pending {
		captured := row.Status == PendingStatusPendingCapture || row.HasCapture()
		if captured == query.Captured && row.CreatedAt.Before(query.Before) {
			out = append(out, clonePendingOrder(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

type memoryDonations struct {
	store  *MemoryStore
	locked bool
}

func (m memoryDonations) acquire() func() {
	if m.locked {
		return func() {}
	}
	m.store.mu.Lock()
	return m.store.mu.Unlock
}

func (m memoryDonations) InsertIfAbsent(_ context.Context, donation Donation) (InsertOutcome, error) {
	donation.TransactionID = strings.TrimSpace(donation.TransactionID)
	if donation.TransactionID == "" {
		return "", fmt.Errorf("core: donation transaction id is required")
	}
	release := m.acquire()
	defer release()
	if _, exists := m.store.donations[donation.TransactionID]; exists {
		return InsertOutcomeAlreadyExists, nil
	}
	if strings.TrimSpace(donation.ID) == "" {
		donation.ID = uuid.NewString()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = m.store.now().UTC()
	}
	m.store.seq++
	m.store.donations[donation.TransactionID] = memoryDonation{donation: donation, seq: m.store.seq}
	return InsertOutcomeInserted, nil
}

func (m memoryDonations) Get(_ context.Context, transactionID string) (Donation, error) {
	release := m.acquire()
	defer release()
	entry, ok := m.store.donations[strings.TrimSpace(transactionID)]
	if !ok {
		return Donation{}, ErrDonationNotFound
	}
	return entry.donation, nil
}

func (m memoryDonations) List(_ context.Context, filter DonationFilter) (DonationPage, error) {
	filter = filter.Normalize()
	release := m.acquire()
	defer release()
	entries := make([]memoryDonation, 0, len(m.store.donations))
	for _, entry := range m.store.donations {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		left, right := entries[i], entries[j]
		if left.donation.CreatedAt.Equal(right.donation.CreatedAt) {
			return left.seq > right.seq
		}
		return left.donation.CreatedAt.After(right.donation.CreatedAt)
	})
	page := DonationPage{Page: filter.Page, PerPage: filter.PerPage, Total: len(entries), Items: []Donation{}}
	offset := filter.Offset()
	if offset >= len(entries) {
		return page, nil
	}
	end := offset + filter.PerPage
	if end > len(entries) {
		end = len(entries)
	}
	for _, entry := range entries[offset:end] {
		page.Items = append(page.Items, entry.donation)
	}
	return page, nil
}

func (m memoryDonations) Summary(context.Context) (DonationSummary, error) {
	release := m.acquire()
	defer release()
	summary := DonationSummary{Total: decimal.Zero}
	for _, entry := range m.store.donations {
		summary.Total = summary.Total.Add(entry.donation.Amount)
		summary.Count++
	}
	return summary, nil
}

func clonePendingOrder(row PendingOrder) PendingOrder {
	out := row
	out.DonorName = cloneString(row.DonorName)
	out.DonorEmail = cloneString(row.DonorEmail)
	if row.DonorAddress != nil {
		address := *row.DonorAddress
		out.DonorAddress = &address
	}
	if row.CaptureData != nil {
		out.CaptureData = append([]byte(nil), row.CaptureData...)
	}
	return out
}

var _ StoreProvider = (*MemoryStore)(nil)
