package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	donationmigrations "github.com/goliatone/go-donations/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// persistenceConfig adapts DatabaseConfig to the go-persistence-bun config
// contract.
type persistenceConfig struct {
	driver      string
	dsn         string
	debug       bool
	pingTimeout time.Duration
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return c.pingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-donations" }

// openDatabase opens the configured database and registers the embedded
// migrations for its dialect. It does not apply them.
func openDatabase(ctx context.Context, cfg DatabaseConfig) (*persistence.Client, error) {
	dialectName, err := donationmigrations.DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	driver := "sqlite3"
	if dialectName == donationmigrations.DialectPostgres {
		driver = "postgres"
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	clientConfig := persistenceConfig{
		driver:      driver,
		dsn:         cfg.DSN,
		debug:       cfg.Debug,
		pingTimeout: pingTimeout,
	}
	var client *persistence.Client
	if driver == "postgres" {
		client, err = persistence.New(clientConfig, sqlDB, pgdialect.New())
	} else {
		client, err = persistence.New(clientConfig, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("new persistence client: %w", err)
	}

	_, err = donationmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != dialectName {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, donationmigrations.WithValidationTargets(dialectName))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
