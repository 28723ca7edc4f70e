package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type CorrelationAction string

const (
	CorrelationStoredDonor   CorrelationAction = "stored_donor"
	CorrelationStoredCapture CorrelationAction = "stored_capture"
	CorrelationFinalized     CorrelationAction = "finalized"
	CorrelationIgnored       CorrelationAction = "ignored"
)

type Correlation struct {
	EventType     string
	OrderID       string
	TransactionID string
	Action        CorrelationAction
	Outcome       InsertOutcome
}

// SummaryInvalidator is implemented by store providers that cache campaign
// totals.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context) error
}

// EventCorrelator merges the order-approved and capture-completed halves of a
// PayPal checkout into a single donation, in either arrival order.
type EventCorrelator struct {
	stores  StoreProvider
	locker  OrderLocker
	lockTTL time.Duration
	logger  Logger
	now     func() time.Time
}

type CorrelatorOption func(*EventCorrelator)

func WithCorrelatorLogger(logger Logger) CorrelatorOption {
	return func(c *EventCorrelator) {
		c.logger = logger
	}
}

func WithCorrelatorClock(now func() time.Time) CorrelatorOption {
	return func(c *EventCorrelator) {
		c.now = now
	}
}

func WithCorrelatorLockTTL(ttl time.Duration) CorrelatorOption {
	return func(c *EventCorrelator) {
		c.lockTTL = ttl
	}
}

func NewEventCorrelator(stores StoreProvider, locker OrderLocker, opts ...CorrelatorOption) (*EventCorrelator, error) {
	if stores == nil {
		return nil, fmt.Errorf("core: correlator store provider is required")
	}
	if locker == nil {
		locker = NewMemoryOrderLocker()
	}
	correlator := &EventCorrelator{
		stores:  stores,
		locker:  locker,
		lockTTL: 30 * time.Second,
		logger:  glog.Nop(),
		now:     defaultNow,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(correlator)
	}
	correlator.logger = glog.Ensure(correlator.logger)
	return correlator, nil
}

func (c *EventCorrelator) Handle(ctx context.Context, eventType string, resource json.RawMessage) error {
	_, err := c.Correlate(ctx, eventType, resource)
	return err
}

func (c *EventCorrelator) HandleEvent(ctx context.Context, event WebhookEvent) error {
	return c.Handle(ctx, event.EventType, event.Resource)
}

func (c *EventCorrelator) Correlate(ctx context.Context, eventType string, resource json.RawMessage) (Correlation, error) {
	if c == nil || c.stores == nil {
		return Correlation{}, NewPersistenceError("correlator is not configured", nil)
	}
	eventType = strings.TrimSpace(eventType)
	switch eventType {
	case EventKindOrderApproved:
		return c.handleOrderApproved(ctx, resource)
	case EventKindCaptureCompleted:
		return c.handleCaptureCompleted(ctx, resource)
	case EventKindAuthorizationCreated:
		c.logger.Debug("authorization event acknowledged", "event_type", eventType)
		return Correlation{EventType: eventType, Action: CorrelationIgnored}, nil
	default:
		c.logger.Warn("unhandled webhook event type", "event_type", eventType)
		return Correlation{EventType: eventType}, NewUnhandledEventError(eventType)
	}
}

func (c *EventCorrelator) handleOrderApproved(ctx context.Context, resource json.RawMessage) (Correlation, error) {
	order, err := DecodeOrderResource(resource)
	if err != nil {
		return Correlation{}, err
	}
	orderID := order.OrderID()
	if orderID == "" {
		return Correlation{}, NewMalformedPayloadError("order resource id is required", nil)
	}

	name := order.DonorName()
	email := order.DonorEmail()
	address := order.DonorAddress()
	amount, currency := order.Amount()
	status := PendingStatusPending
	patch := PendingOrderPatch{
		DonorName:    &name,
		DonorEmail:   &email,
		DonorAddress: &address,
		Amount:       &amount,
		Currency:     &currency,
		Status:       &status,
	}

	result := Correlation{EventType: EventKindOrderApproved, OrderID: orderID, Action: CorrelationStoredDonor}
	err = c.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return c.stores.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
			if _, err := uow.PendingOrders().UpsertMerge(ctx, orderID, patch); err != nil {
				return persistenceFailure("upsert pending order", err)
			}
			row, found, err := uow.PendingOrders().Get(ctx, orderID)
			if err != nil {
				return persistenceFailure("read pending order", err)
			}
			if !found {
				return NewPersistenceError(fmt.Sprintf("pending order %q vanished after upsert", orderID), nil)
			}
			if !row.HasCapture() {
				return nil
			}
			capture, err := DecodeCaptureResource(row.CaptureData)
			if err != nil {
				return persistenceFailure("decode stored capture", err)
			}
			outcome, err := c.finalize(ctx, uow, row, capture)
			if err != nil {
				return err
			}
			result.Action = CorrelationFinalized
			result.TransactionID = capture.TransactionID()
			result.Outcome = outcome
			return nil
		})
	})
	if err != nil {
		return Correlation{}, err
	}
	c.afterCommit(ctx, result)
	return result, nil
}

func (c *EventCorrelator) handleCaptureCompleted(ctx context.Context, resource json.RawMessage) (Correlation, error) {
	capture, err := DecodeCaptureResource(resource)
	if err != nil {
		return Correlation{}, err
	}
	orderID := capture.OrderID()
	if orderID == "" {
		return Correlation{}, NewMalformedPayloadError("capture related order id is required", nil)
	}
	if capture.TransactionID() == "" {
		return Correlation{}, NewMalformedPayloadError("capture id is required", nil)
	}

	result := Correlation{
		EventType:     EventKindCaptureCompleted,
		OrderID:       orderID,
		TransactionID: capture.TransactionID(),
		Action:        CorrelationStoredCapture,
	}
	err = c.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		return c.stores.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
			row, found, err := uow.PendingOrders().Get(ctx, orderID)
			if err != nil {
				return persistenceFailure("read pending order", err)
			}
			if !found || !row.HasDonor() {
				recorded, err := donationRecorded(ctx, uow, capture.TransactionID())
				if err != nil {
					return err
				}
				if recorded {
					// Replay of a capture that was already finalized.
					result.Action = CorrelationIgnored
					result.Outcome = InsertOutcomeAlreadyExists
					if found {
						if err := uow.PendingOrders().Delete(ctx, orderID); err != nil {
							return persistenceFailure("delete pending order", err)
						}
					}
					return nil
				}
				// Order approval has not arrived yet; keep the capture for it.
				status := PendingStatusPendingCapture
				_, err = uow.PendingOrders().UpsertMerge(ctx, orderID, PendingOrderPatch{
					Status:      &status,
					CaptureData: append([]byte(nil), resource...),
				})
				if err != nil {
					return persistenceFailure("store pending capture", err)
				}
				return nil
			}
			outcome, err := c.finalize(ctx, uow, row, capture)
			if err != nil {
				return err
			}
			result.Action = CorrelationFinalized
			result.Outcome = outcome
			return nil
		})
	})
	if err != nil {
		return Correlation{}, err
	}
	c.afterCommit(ctx, result)
	return result, nil
}

func donationRecorded(ctx context.Context, uow UnitOfWork, transactionID string) (bool, error) {
	_, err := uow.Donations().Get(ctx, transactionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDonationNotFound):
		return false, nil
	default:
		return false, persistenceFailure("read donation", err)
	}
}

// finalize records the donation and always drops the pending row, even when
// the transaction id was already recorded by an earlier delivery.
func (c *EventCorrelator) finalize(
	ctx context.Context,
	uow UnitOfWork,
	row PendingOrder,
	capture CaptureResource,
) (InsertOutcome, error) {
	transactionID := capture.TransactionID()
	if transactionID == "" {
		return "", NewMalformedPayloadError("capture id is required", nil)
	}
	donor := row.Donor()
	currency := strings.TrimSpace(row.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	outcome, err := uow.Donations().InsertIfAbsent(ctx, Donation{
		TransactionID: transactionID,
		OrderID:       row.OrderID,
		Amount:        row.Amount,
		Currency:      currency,
		DonorName:     donor.Name,
		DonorEmail:    donor.Email,
		DonorAddress:  donor.Address,
		CreatedAt:     c.now().UTC(),
	})
	if err != nil {
		return "", persistenceFailure("insert donation", err)
	}
	if err := uow.PendingOrders().Delete(ctx, row.OrderID); err != nil {
		return "", persistenceFailure("delete pending order", err)
	}
	return outcome, nil
}

func (c *EventCorrelator) withOrderLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	handle, err := c.locker.Acquire(ctx, orderID, c.lockTTL)
	if err != nil {
		return NewLockTimeoutError(orderID, err)
	}
	defer func() {
		if releaseErr := handle.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			c.logger.Warn("order lock release failed", "order_id", orderID, "error", releaseErr)
		}
	}()
	return fn(ctx)
}

func (c *EventCorrelator) afterCommit(ctx context.Context, result Correlation) {
	if result.Action != CorrelationFinalized {
		c.logger.Debug("pending order updated", "order_id", result.OrderID, "action", string(result.Action))
		return
	}
	c.logger.Info("donation finalized",
		"order_id", result.OrderID,
		"transaction_id", result.TransactionID,
		"outcome", string(result.Outcome),
	)
	if result.Outcome != InsertOutcomeInserted {
		return
	}
	if invalidator, ok := c.stores.(SummaryInvalidator); ok {
		if err := invalidator.InvalidateSummary(ctx); err != nil {
			c.logger.Warn("donation summary invalidation failed", "error", err)
		}
	}
}

func persistenceFailure(operation string, err error) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == ErrorPersistenceFailure {
		return err
	}
	return NewPersistenceError("donation store: "+operation+" failed", err)
}

var _ EventHandler = (*EventCorrelator)(nil)
