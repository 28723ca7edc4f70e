package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-donations/core"
)

var (
	_ gocmd.Commander[HandleWebhookEventMessage] = (*HandleWebhookEventCommand)(nil)
	_ gocmd.Commander[ReconcilePendingMessage]   = (*ReconcilePendingCommand)(nil)
	_ core.EventHandler                          = (*HandleWebhookEventCommand)(nil)
	_ MutatingService                            = (*core.Service)(nil)
)
