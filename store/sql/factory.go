package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-donations/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL stores and is itself the StoreProvider
// handed to the donation service.
type RepositoryFactory struct {
	db           *bun.DB
	summaryCache repositorycache.CacheService

	pendingOrderStore    *PendingOrderStore
	donationStore        *DonationStore
	webhookDeliveryStore *WebhookDeliveryStore
	orderLockStore       *OrderLockStore
}

type FactoryOption func(*RepositoryFactory)

// WithSummaryCache caches campaign totals; entries are dropped on every new
// donation.
func WithSummaryCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.summaryCache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.pendingOrderStore != nil && f.donationStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) PendingOrders() core.PendingOrderStore {
	if f == nil {
		return nil
	}
	return f.pendingOrderStore
}

func (f *RepositoryFactory) Donations() core.DonationLedger {
	if f == nil {
		return nil
	}
	return f.donationStore
}

// RunInTx runs fn in a database transaction. Stores handed to fn share it.
func (f *RepositoryFactory) RunInTx(ctx context.Context, fn func(ctx context.Context, uow core.UnitOfWork) error) error {
	if f == nil || f.db == nil || f.pendingOrderStore == nil {
		return fmt.Errorf("sqlstore: repository factory is not configured")
	}
	if fn == nil {
		return nil
	}
	return f.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, txUnitOfWork{
			pendingOrders: f.pendingOrderStore.withDB(tx),
			donations:     f.donationStore.withDB(tx),
		})
	})
}

// InvalidateSummary drops cached campaign totals.
func (f *RepositoryFactory) InvalidateSummary(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f.donationStore.invalidateSummary(ctx)
}

func (f *RepositoryFactory) OrderLocker() core.OrderLocker {
	if f == nil || f.orderLockStore == nil {
		return nil
	}
	return f.orderLockStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	pendingOrderStore, err := NewPendingOrderStore(f.db)
	if err != nil {
		return err
	}
	f.pendingOrderStore = pendingOrderStore

	donationStore, err := NewDonationStore(f.db)
	if err != nil {
		return err
	}
	donationStore.cache = f.summaryCache
	f.donationStore = donationStore

	webhookDeliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.webhookDeliveryStore = webhookDeliveryStore

	orderLockStore, err := NewOrderLockStore(f.db)
	if err != nil {
		return err
	}
	f.orderLockStore = orderLockStore
	return nil
}

type txUnitOfWork struct {
	pendingOrders *PendingOrderStore
	donations     *DonationStore
}

func (u txUnitOfWork) PendingOrders() core.PendingOrderStore {
	return u.pendingOrders
}

func (u txUnitOfWork) Donations() core.DonationLedger {
	return u.donations
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

func defaultNow() time.Time {
	return time.Now().UTC()
}
