package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-donations/core"
)

type MutatingService interface {
	HandleEvent(ctx context.Context, event core.WebhookEvent) error
	ReconcilePending(ctx context.Context, req core.ReconcileRequest) (core.ReconcileReport, error)
}

type HandleWebhookEventCommand struct {
	service MutatingService
}

func NewHandleWebhookEventCommand(service MutatingService) *HandleWebhookEventCommand {
	return &HandleWebhookEventCommand{service: service}
}

func (c *HandleWebhookEventCommand) Execute(ctx context.Context, msg HandleWebhookEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook event service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.HandleEvent(ctx, msg.Event)
}

// HandleEvent lets the command serve as the webhook processor's event handler.
func (c *HandleWebhookEventCommand) HandleEvent(ctx context.Context, event core.WebhookEvent) error {
	return c.Execute(ctx, HandleWebhookEventMessage{Event: event})
}

type ReconcilePendingCommand struct {
	service MutatingService
}

func NewReconcilePendingCommand(service MutatingService) *ReconcilePendingCommand {
	return &ReconcilePendingCommand{service: service}
}

func (c *ReconcilePendingCommand) Execute(ctx context.Context, msg ReconcilePendingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconcile service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.ReconcilePending(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
