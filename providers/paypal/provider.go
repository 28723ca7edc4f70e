// Package paypal wires PayPal webhook verification into the webhook processor.
package paypal

import (
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/webhooks"
)

// NewWebhookProcessor builds a processor that verifies deliveries with the
// PayPal API and dedupes them by event id, falling back to the transmission id.
func NewWebhookProcessor(
	verifier core.SignatureVerifier,
	ledger webhooks.DeliveryLedger,
	handler core.EventHandler,
	logger core.Logger,
) *webhooks.Processor {
	processor := webhooks.NewProcessor(verifier, ledger, handler)
	processor.Logger = logger
	return processor
}
