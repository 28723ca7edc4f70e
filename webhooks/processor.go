package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
	// DeliveryStatusRejected marks a delivery that failed for good. LastError
	// holds the error text code so redeliveries get the same answer.
	DeliveryStatusRejected   = "rejected"
)

const (
	HeaderTransmissionID = "PAYPAL-TRANSMISSION-ID"

	defaultClaimLease  = 30 * time.Second
	defaultMaxAttempts = 25
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger records each webhook delivery so redeliveries of a processed
// event are acknowledged without running the handler again.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Reject(ctx context.Context, claimID string, textCode string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type DeliveryIDExtractor func(event core.WebhookEvent, req core.InboundRequest) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor runs verify, decode, dedupe and dispatch for one delivery. The
// ledger is optional; without it every verified delivery reaches the handler.
type Processor struct {
	Verifier    core.SignatureVerifier
	Ledger      DeliveryLedger
	Handler     core.EventHandler
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	Logger      core.Logger
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(verifier core.SignatureVerifier, ledger DeliveryLedger, handler core.EventHandler) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		ExtractID:   DefaultDeliveryIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  defaultClaimLease,
		MaxAttempts: defaultMaxAttempts,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil || p.Verifier == nil {
		return core.InboundResult{}, processorError("webhooks: processor requires verifier and handler")
	}
	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		providerID = core.ProviderIDPayPal
	}

	if err := p.Verifier.Verify(ctx, req.Body, req.Headers); err != nil {
		if !core.IsSignatureInvalid(err) {
			err = core.NewSignatureInvalidError("", err)
		}
		return rejected(providerID, http.StatusBadRequest), err
	}

	event, err := DecodeEvent(req.Body)
	if err != nil {
		return rejected(providerID, http.StatusBadRequest), err
	}

	if p.Ledger == nil {
		if err := p.Handler.HandleEvent(ctx, event); err != nil {
			return rejected(providerID, core.HTTPStatus(err)), err
		}
		return accepted(providerID, event, ""), nil
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultDeliveryIDExtractor
	}
	deliveryID, err := extractor(event, req)
	if err != nil {
		return rejected(providerID, http.StatusBadRequest), core.NewMalformedPayloadError("", err)
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, providerID, deliveryID, req.Body, p.claimLease())
	if err != nil {
		err = core.NewPersistenceError("webhook delivery claim failed", err)
		return rejected(providerID, http.StatusInternalServerError), err
	}
	if !claimed {
		switch delivery.Status {
		case DeliveryStatusProcessing:
			err := inProgressError(deliveryID)
			return rejected(providerID, core.HTTPStatus(err)), err
		case DeliveryStatusRejected:
			err := rejectionError(delivery.LastError, event)
			result := rejected(providerID, core.HTTPStatus(err))
			result.Metadata["delivery_id"] = deliveryID
			result.Metadata["deduped"] = true
			return result, err
		}
		result := accepted(providerID, event, deliveryID)
		result.Metadata["status"] = delivery.Status
		result.Metadata["deduped"] = true
		return result, nil
	}

	if err := p.Handler.HandleEvent(ctx, event); err != nil {
		if code := permanentTextCode(err); code != "" {
			if markErr := p.Ledger.Reject(ctx, delivery.ClaimID, code); markErr != nil {
				p.warn("webhook delivery reject failed", deliveryID, markErr)
			}
		} else {
			nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
			if markErr := p.Ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt, p.maxAttempts()); markErr != nil {
				p.warn("webhook delivery fail mark failed", deliveryID, markErr)
			}
		}
		result := rejected(providerID, core.HTTPStatus(err))
		result.Metadata["delivery_id"] = deliveryID
		return result, err
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		err = core.NewPersistenceError("webhook delivery completion failed", err)
		return rejected(providerID, http.StatusInternalServerError), err
	}
	return accepted(providerID, event, deliveryID), nil
}

// DecodeEvent parses the webhook envelope.
func DecodeEvent(body []byte) (core.WebhookEvent, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.WebhookEvent{}, core.NewMalformedPayloadError("", nil)
	}
	var event core.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return core.WebhookEvent{}, core.NewMalformedPayloadError("", err)
	}
	event.ID = strings.TrimSpace(event.ID)
	event.EventType = strings.TrimSpace(event.EventType)
	if event.EventType == "" {
		return core.WebhookEvent{}, core.NewMalformedPayloadError("event_type is required", nil)
	}
	return event, nil
}

// DefaultDeliveryIDExtractor uses the event id, falling back to the PayPal
// transmission id header.
func DefaultDeliveryIDExtractor(event core.WebhookEvent, req core.InboundRequest) (string, error) {
	if id := strings.TrimSpace(event.ID); id != "" {
		return id, nil
	}
	if value := headerValue(req.Headers, HeaderTransmissionID); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
}

// permanentTextCode returns the text code of errors a redelivery cannot fix,
// or "" when the delivery should be retried.
func permanentTextCode(err error) string {
	switch {
	case core.IsUnhandledEvent(err):
		return core.ErrorUnhandledEvent
	case core.IsMalformedPayload(err):
		return core.ErrorInvalidJSON
	default:
		return ""
	}
}

func rejectionError(textCode string, event core.WebhookEvent) error {
	if strings.TrimSpace(textCode) == core.ErrorInvalidJSON {
		return core.NewMalformedPayloadError("", nil)
	}
	return core.NewUnhandledEventError(event.EventType)
}

func inProgressError(deliveryID string) error {
	return goerrors.New("webhook delivery is already being processed", goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode("delivery_in_progress").
		WithMetadata(map[string]any{"delivery_id": deliveryID})
}

func processorError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func accepted(providerID string, event core.WebhookEvent, deliveryID string) core.InboundResult {
	metadata := map[string]any{
		"provider_id": providerID,
		"event_type":  event.EventType,
	}
	if deliveryID != "" {
		metadata["delivery_id"] = deliveryID
	}
	return core.InboundResult{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}
}

func rejected(providerID string, status int) core.InboundResult {
	return core.InboundResult{
		Accepted:   false,
		StatusCode: status,
		Metadata: map[string]any{
			"provider_id": providerID,
			"rejected":    true,
		},
	}
}

func (p *Processor) warn(message string, deliveryID string, err error) {
	if p == nil || p.Logger == nil {
		return
	}
	p.Logger.Warn(message, "delivery_id", deliveryID, "error", err)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return defaultClaimLease
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
