package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	donations "github.com/goliatone/go-donations"
	"github.com/goliatone/go-donations/adapters/gologger"
	"github.com/goliatone/go-donations/core"
	sqlstore "github.com/goliatone/go-donations/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

// runtime is the wired process: config, logger, database and service.
type runtime struct {
	config  AppConfig
	logger  *gologger.ConsoleLogger
	client  *persistence.Client
	factory *sqlstore.RepositoryFactory
	service *core.Service
	facade  *donations.Facade
}

type runtimeOptions struct {
	database bool
	migrate  bool
}

func newRuntime(ctx context.Context, opts *RootOptions, logOutput io.Writer, ropts runtimeOptions) (*runtime, error) {
	cfg, err := LoadConfig(opts.ConfigPath, environ(opts))
	if err != nil {
		return nil, err
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Log.Level = level
	}
	rt := &runtime{
		config: cfg,
		logger: gologger.NewConsoleLogger(gologger.ConsoleOptions{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: logOutput,
		}),
	}

	serviceOpts := []donations.Option{
		donations.WithConfigProvider(core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(cfg.Donations))),
		donations.WithLoggerProvider(gologger.NewConsoleProvider(rt.logger)),
	}
	if ropts.database {
		if err := rt.openStores(ctx, ropts.migrate); err != nil {
			_ = rt.Close()
			return nil, err
		}
		serviceOpts = append(serviceOpts,
			donations.WithPersistenceClient(rt.client),
			donations.WithRepositoryFactory(rt.factory),
		)
	}

	service, err := donations.NewService(core.Config{}, serviceOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	facade, err := donations.NewFacade(service)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.service = service
	rt.facade = facade
	return rt, nil
}

func (rt *runtime) openStores(ctx context.Context, migrate bool) error {
	client, err := openDatabase(ctx, rt.config.Database)
	if err != nil {
		return err
	}
	rt.client = client
	if migrate || rt.config.Database.AutoMigrate {
		if err := client.Migrate(ctx); err != nil {
			return err
		}
		rt.logger.Info("migrations applied", "driver", rt.config.Database.Driver)
	}

	factoryOpts := []sqlstore.FactoryOption{}
	if ttl := rt.config.Cache.SummaryTTL; ttl > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = ttl
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return err
		}
		factoryOpts = append(factoryOpts, sqlstore.WithSummaryCache(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		return err
	}
	rt.factory = factory
	return nil
}

func (rt *runtime) Close() error {
	if rt == nil || rt.client == nil {
		return nil
	}
	err := rt.client.Close()
	rt.client = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
