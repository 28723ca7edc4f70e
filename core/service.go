package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	storeProvider     StoreProvider
	orderLocker       OrderLocker
	correlator        *EventCorrelator
	reconciler        *PendingReconciler
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	StoreProvider     StoreProvider
	OrderLocker       OrderLocker
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("donations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("donations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = defaultNow
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.storeProvider == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			builder.storeProvider = stores
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.storeProvider = stores
		}
	}
	if builder.storeProvider == nil {
		builder.storeProvider = NewMemoryStore()
	}
	if builder.orderLocker == nil {
		if locker, ok := builder.storeProvider.(interface{ OrderLocker() OrderLocker }); ok && locker.OrderLocker() != nil {
			builder.orderLocker = locker.OrderLocker()
		} else {
			builder.orderLocker = NewMemoryOrderLocker()
		}
	}

	correlator, err := NewEventCorrelator(builder.storeProvider, builder.orderLocker,
		WithCorrelatorLogger(logger),
		WithCorrelatorClock(builder.now),
		WithCorrelatorLockTTL(finalConfig.Reconcile.LockTTL),
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	reconciler, err := NewPendingReconciler(
		builder.storeProvider,
		builder.orderLocker,
		finalConfig.Reconcile,
		logger,
		builder.now,
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		storeProvider:     builder.storeProvider,
		orderLocker:       builder.orderLocker,
		correlator:        correlator,
		reconciler:        reconciler,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		StoreProvider:     s.storeProvider,
		OrderLocker:       s.orderLocker,
	}
}

func (s *Service) Correlator() *EventCorrelator {
	if s == nil {
		return nil
	}
	return s.correlator
}

// HandleEvent applies one verified PayPal webhook event.
func (s *Service) HandleEvent(ctx context.Context, event WebhookEvent) (err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"event_id":   event.ID,
		"event_type": event.EventType,
	}
	var result Correlation
	defer func() {
		if result.OrderID != "" {
			fields["order_id"] = result.OrderID
		}
		if result.TransactionID != "" {
			fields["transaction_id"] = result.TransactionID
		}
		if result.Action != "" {
			fields["action"] = string(result.Action)
		}
		if result.Outcome != "" {
			fields["outcome"] = string(result.Outcome)
		}
		s.observeOperation(ctx, startedAt, "handle_event", err, fields)
	}()

	if s == nil || s.correlator == nil {
		err = s.mapError(fmt.Errorf("core: event correlator is not configured"))
		return err
	}
	result, err = s.correlator.Correlate(ctx, event.EventType, event.Resource)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) ListDonations(ctx context.Context, filter DonationFilter) (page DonationPage, err error) {
	startedAt := s.clock()
	filter = filter.Normalize()
	fields := map[string]any{"page": filter.Page, "per_page": filter.PerPage}
	defer func() {
		fields["total"] = page.Total
		s.observeOperation(ctx, startedAt, "list_donations", err, fields)
	}()

	if s == nil || s.storeProvider == nil {
		err = s.mapError(fmt.Errorf("core: donation store is required"))
		return DonationPage{}, err
	}
	page, err = s.storeProvider.Donations().List(ctx, filter)
	if err != nil {
		err = s.mapError(persistenceFailure("list donations", err))
		return DonationPage{}, err
	}
	return page, nil
}

func (s *Service) GetDonation(ctx context.Context, transactionID string) (Donation, error) {
	if s == nil || s.storeProvider == nil {
		return Donation{}, s.mapError(fmt.Errorf("core: donation store is required"))
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return Donation{}, s.mapError(fmt.Errorf("core: transaction id is required"))
	}
	donation, err := s.storeProvider.Donations().Get(ctx, transactionID)
	if err != nil {
		return Donation{}, s.mapError(err)
	}
	return donation, nil
}

// Progress reports the campaign total against the configured goal.
func (s *Service) Progress(ctx context.Context) (progress CampaignProgress, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["count"] = progress.Count
		s.observeOperation(ctx, startedAt, "progress", err, fields)
	}()

	if s == nil || s.storeProvider == nil {
		err = s.mapError(fmt.Errorf("core: donation store is required"))
		return CampaignProgress{}, err
	}
	summary, err := s.storeProvider.Donations().Summary(ctx)
	if err != nil {
		err = s.mapError(persistenceFailure("summarize donations", err))
		return CampaignProgress{}, err
	}
	return ComputeProgress(summary, s.config.Goal(), s.config.Campaign.Currency), nil
}

func (s *Service) QuoteFees(amount decimal.Decimal) FeeQuote {
	cfg := DefaultConfig()
	if s != nil {
		cfg = s.config
	}
	return ComputeFeeQuote(amount, cfg.FeePercentage(), cfg.FixedFee(), cfg.Campaign.Currency)
}

func (s *Service) ReconcilePending(ctx context.Context, req ReconcileRequest) (report ReconcileReport, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"dry_run": req.DryRun,
		"limit":   req.Limit,
	}
	defer func() {
		fields["scanned"] = report.Scanned
		fields["deleted"] = report.Deleted
		fields["orphaned_captures"] = len(report.OrphanedCaptures)
		s.observeOperation(ctx, startedAt, "reconcile_pending", err, fields)
	}()

	if s == nil || s.reconciler == nil {
		err = s.mapError(fmt.Errorf("core: pending reconciler is not configured"))
		return ReconcileReport{}, err
	}
	if req.OlderThan < 0 || req.Limit < 0 {
		err = s.mapError(fmt.Errorf("core: reconcile request is invalid"))
		return ReconcileReport{}, err
	}
	report, err = s.reconciler.Reconcile(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return report, err
	}
	return report, nil
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return defaultNow()
	}
	return s.now()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
