package donations

import "github.com/goliatone/go-donations/core"

type Config = core.Config
type PayPalConfig = core.PayPalConfig
type FeeConfig = core.FeeConfig
type CampaignConfig = core.CampaignConfig
type ReconcileConfig = core.ReconcileConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type StoreProvider = core.StoreProvider
type OrderLocker = core.OrderLocker
type SignatureVerifier = core.SignatureVerifier

type WebhookEvent = core.WebhookEvent
type Donation = core.Donation
type DonationFilter = core.DonationFilter
type DonationPage = core.DonationPage
type CampaignProgress = core.CampaignProgress
type FeeQuote = core.FeeQuote
type ReconcileRequest = core.ReconcileRequest
type ReconcileReport = core.ReconcileReport

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithStoreProvider     = core.WithStoreProvider
	WithOrderLocker       = core.WithOrderLocker
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
