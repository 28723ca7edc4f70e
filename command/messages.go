package command

import (
	"strings"

	"github.com/goliatone/go-donations/core"
)

const (
	TypeHandleWebhookEvent = "donations.command.webhook_event.handle"
	TypeReconcilePending   = "donations.command.pending.reconcile"
)

// HandleWebhookEventMessage carries a PayPal event whose signature was
// already verified.
type HandleWebhookEventMessage struct {
	Event core.WebhookEvent
}

func (HandleWebhookEventMessage) Type() string { return TypeHandleWebhookEvent }

func (m HandleWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.Event.EventType) == "" {
		return commandValidationError("event_type", "event type is required")
	}
	if len(m.Event.Resource) == 0 {
		return commandValidationError("resource", "event resource is required")
	}
	return nil
}

type ReconcilePendingMessage struct {
	Request core.ReconcileRequest
}

func (ReconcilePendingMessage) Type() string { return TypeReconcilePending }

func (m ReconcilePendingMessage) Validate() error {
	if m.Request.OlderThan < 0 {
		return commandValidationError("older_than", "older_than must not be negative")
	}
	if m.Request.Limit < 0 {
		return commandValidationError("limit", "limit must not be negative")
	}
	return nil
}
