package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-donations/core"
)

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(context.Context, []byte, map[string]string) error {
	v.calls++
	return v.err
}

type stubEventHandler struct {
	err    error
	events []core.WebhookEvent
}

func (h *stubEventHandler) HandleEvent(_ context.Context, event core.WebhookEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func webhookBody(id string, eventType string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"id":         id,
		"event_type": eventType,
		"resource":   map[string]any{"id": "ORDER-1"},
	})
	return raw
}

func TestProcessor_DedupesDeliveries(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubEventHandler{}
	processor := NewProcessor(&stubVerifier{}, ledger, handler)
	req := core.InboundRequest{ProviderID: core.ProviderIDPayPal, Body: webhookBody("WH-1", core.EventKindOrderApproved)}

	first, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process first webhook: %v", err)
	}
	if !first.Accepted || first.StatusCode != 200 {
		t.Fatalf("expected first delivery accepted, got %#v", first)
	}

	second, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process duplicate webhook: %v", err)
	}
	if second.Metadata["deduped"] != true {
		t.Fatalf("expected deduped metadata marker")
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected handler to run once, got %d", len(handler.events))
	}
	if handler.events[0].Resource == nil {
		t.Fatalf("expected resource to be passed through")
	}
}

func TestProcessor_RecordsRetryOnHandlerFailure(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubEventHandler{err: core.NewPersistenceError("", errors.New("db down"))}
	processor := NewProcessor(&stubVerifier{}, ledger, handler)
	processor.RetryPolicy = ExponentialRetryPolicy{Initial: time.Second, Max: 4 * time.Second}
	processor.Now = func() time.Time {
		return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	}
	req := core.InboundRequest{Body: webhookBody("WH-2", core.EventKindCaptureCompleted)}

	result, err := processor.Process(context.Background(), req)
	if !core.IsPersistenceFailure(err) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if result.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", result.StatusCode)
	}
	record, err := ledger.Get(context.Background(), core.ProviderIDPayPal, "WH-2")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry-ready status, got %q", record.Status)
	}

	handler.err = nil
	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	record, _ = ledger.Get(context.Background(), core.ProviderIDPayPal, "WH-2")
	if record.Status != DeliveryStatusProcessed || record.Attempts != 2 {
		t.Fatalf("expected processed on second attempt, got %q attempts=%d", record.Status, record.Attempts)
	}
}

func TestProcessor_RejectsInvalidSignature(t *testing.T) {
	handler := &stubEventHandler{}
	processor := NewProcessor(&stubVerifier{err: errors.New("paypal said FAILURE")}, NewMemoryDeliveryLedger(), handler)

	result, err := processor.Process(context.Background(), core.InboundRequest{
		Body: webhookBody("WH-3", core.EventKindOrderApproved),
	})
	if !core.IsSignatureInvalid(err) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if result.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", result.StatusCode)
	}
	if len(handler.events) != 0 {
		t.Fatalf("expected handler not to run when verification fails")
	}
}

func TestProcessor_InvalidJSONAfterVerification(t *testing.T) {
	verifier := &stubVerifier{}
	processor := NewProcessor(verifier, nil, &stubEventHandler{})

	result, err := processor.Process(context.Background(), core.InboundRequest{Body: []byte(`{not json`)})
	if !core.IsMalformedPayload(err) {
		t.Fatalf("expected malformed payload error, got %v", err)
	}
	if result.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", result.StatusCode)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected verification before decoding")
	}
}

func TestProcessor_UnhandledEventRejectsRedeliveries(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubEventHandler{err: core.NewUnhandledEventError("OTHER.EVENT")}
	processor := NewProcessor(&stubVerifier{}, ledger, handler)
	req := core.InboundRequest{Body: webhookBody("WH-4", "OTHER.EVENT")}

	result, err := processor.Process(context.Background(), req)
	if !core.IsUnhandledEvent(err) {
		t.Fatalf("expected unhandled event error, got %v", err)
	}
	if result.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", result.StatusCode)
	}
	record, _ := ledger.Get(context.Background(), core.ProviderIDPayPal, "WH-4")
	if record.Status != DeliveryStatusRejected || record.LastError != core.ErrorUnhandledEvent {
		t.Fatalf("expected rejected delivery with text code, got %q %q", record.Status, record.LastError)
	}

	retry, err := processor.Process(context.Background(), req)
	if !core.IsUnhandledEvent(err) {
		t.Fatalf("expected redelivery to keep the unhandled event error, got %v", err)
	}
	if retry.Accepted || retry.StatusCode != 400 || retry.Metadata["deduped"] != true {
		t.Fatalf("expected deduped 400 on redelivery, got %#v", retry)
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected handler to run once, got %d", len(handler.events))
	}
}

func TestProcessor_MalformedResourceRejectsRedeliveries(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	handler := &stubEventHandler{err: core.NewMalformedPayloadError("capture id is required", nil)}
	processor := NewProcessor(&stubVerifier{}, ledger, handler)
	req := core.InboundRequest{Body: webhookBody("WH-7", core.EventKindCaptureCompleted)}

	if _, err := processor.Process(context.Background(), req); !core.IsMalformedPayload(err) {
		t.Fatalf("expected malformed payload error, got %v", err)
	}
	retry, err := processor.Process(context.Background(), req)
	if !core.IsMalformedPayload(err) {
		t.Fatalf("expected redelivery to keep invalid_json, got %v", err)
	}
	if retry.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", retry.StatusCode)
	}
}

func TestProcessor_MissingEventTypeIsInvalidJSON(t *testing.T) {
	handler := &stubEventHandler{}
	processor := NewProcessor(&stubVerifier{}, NewMemoryDeliveryLedger(), handler)

	result, err := processor.Process(context.Background(), core.InboundRequest{
		Body: []byte(`{"id":"WH-8","resource":{"id":"ORDER-1"}}`),
	})
	if !core.IsMalformedPayload(err) {
		t.Fatalf("expected invalid_json, got %v", err)
	}
	if result.StatusCode != 400 || len(handler.events) != 0 {
		t.Fatalf("expected 400 without dispatch, got %d events=%d", result.StatusCode, len(handler.events))
	}
}

func TestProcessor_TransmissionIDFallback(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	processor := NewProcessor(&stubVerifier{}, ledger, &stubEventHandler{})

	_, err := processor.Process(context.Background(), core.InboundRequest{
		Headers: map[string]string{"Paypal-Transmission-Id": "TX-9"},
		Body:    []byte(`{"event_type":"PAYMENT.AUTHORIZATION.CREATED","resource":{}}`),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := ledger.Get(context.Background(), core.ProviderIDPayPal, "TX-9"); err != nil {
		t.Fatalf("expected delivery keyed by transmission id: %v", err)
	}
}

func TestProcessor_InFlightDeliveryConflicts(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	if _, claimed, err := ledger.Claim(context.Background(), core.ProviderIDPayPal, "WH-5", nil, time.Minute); err != nil || !claimed {
		t.Fatalf("seed claim: claimed=%v err=%v", claimed, err)
	}
	processor := NewProcessor(&stubVerifier{}, ledger, &stubEventHandler{})
	result, err := processor.Process(context.Background(), core.InboundRequest{Body: webhookBody("WH-5", core.EventKindOrderApproved)})
	if err == nil {
		t.Fatalf("expected in-progress conflict")
	}
	if result.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", result.StatusCode)
	}
}

func TestMemoryDeliveryLedger_DeadAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryDeliveryLedger()
	record, _, err := ledger.Claim(ctx, "paypal", "WH-6", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.Fail(ctx, record.ClaimID, errors.New("boom"), time.Now(), 1); err != nil {
		t.Fatalf("fail: %v", err)
	}
	record, _ = ledger.Get(ctx, "paypal", "WH-6")
	if record.Status != DeliveryStatusDead || record.LastError != "boom" {
		t.Fatalf("expected dead delivery, got %#v", record)
	}
	if _, claimed, _ := ledger.Claim(ctx, "paypal", "WH-6", nil, time.Minute); claimed {
		t.Fatalf("expected dead delivery not to be claimable")
	}
}

func TestExponentialRetryPolicy(t *testing.T) {
	policy := ExponentialRetryPolicy{Initial: time.Second, Max: 5 * time.Second}
	if policy.NextDelay(1) != time.Second || policy.NextDelay(3) != 4*time.Second || policy.NextDelay(10) != 5*time.Second {
		t.Fatalf("unexpected delays")
	}
}
