package sqlstore

import (
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/webhooks"
)

var (
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ core.SummaryInvalidator     = (*RepositoryFactory)(nil)
	_ core.UnitOfWork             = txUnitOfWork{}
	_ webhooks.DeliveryLedger     = (*WebhookDeliveryStore)(nil)
	_ core.OrderLocker            = (*OrderLockStore)(nil)
)
