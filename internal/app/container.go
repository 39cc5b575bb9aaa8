// Package app wires the settlement services to their infrastructure. The
// HTTP server and the settlectl CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/payroll"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/cache"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/event"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/persistence"
	"github.com/fieldops/backend/internal/infrastructure/storage"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X .../internal/app.Version=..."
var Version = "dev"

// Container holds the long-lived infrastructure and the services built on it
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Database    *persistence.Database
	Redis       *redis.Client
	Storage     settlement.ProofStorage
	Idempotency shared.IdempotencyStore
	Events      *event.InMemoryEventBus
	Meters      *telemetry.MeterProvider

	Invoices       *settlement.InvoiceService
	Collection     *settlement.CollectionService
	Cancellation   *settlement.CancellationService
	Treasury       *settlement.TreasuryService
	Custody        *settlement.CustodyService
	Stats          *settlement.StatsService
	Bonus          *settlement.BonusService
	Reconciliation *settlement.ReconciliationService
	ProofCleanup   *settlement.ProofCleanupService

	closers []func(context.Context) error
}

// Options tweak what New builds
type Options struct {
	// Meters is nil when metrics are disabled
	Meters *telemetry.MeterProvider
	// SkipIdempotency leaves Idempotency nil, for one-shot commands
	SkipIdempotency bool
}

// New connects to the database, redis and object storage and builds every
// settlement service. Close releases what New opened, in reverse order.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*Container, error) {
	c := &Container{Config: cfg, Logger: log, Meters: opts.Meters}
	if err := c.open(ctx, opts); err != nil {
		_ = c.Close(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Container) open(ctx context.Context, opts Options) error {
	cfg := c.Config
	if err := c.openDatabase(ctx); err != nil {
		return err
	}
	if cfg.Redis.Host != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		c.Redis = client
		c.onClose(func(context.Context) error { return client.Close() })
		c.Logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	if err := c.openStorage(); err != nil {
		return err
	}
	if !opts.SkipIdempotency && cfg.Idempotency.Enabled {
		store, err := c.idempotencyStore()
		if err != nil {
			return err
		}
		c.Idempotency = store
	}
	return c.buildServices(ctx)
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) openDatabase(ctx context.Context) error {
	cfg, log := c.Config, c.Logger

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	c.Database = db
	c.onClose(func(context.Context) error { return db.Close() })
	log.Info("database connected", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	dbCfg := telemetry.DBConfig{
		TraceEnabled:       cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBName:             cfg.Database.DBName,
	}
	if err := telemetry.InstrumentTracing(db.DB, dbCfg, log); err != nil {
		return fmt.Errorf("instrument database tracing: %w", err)
	}
	if c.Meters != nil && c.Meters.IsEnabled() {
		metrics, err := telemetry.InstrumentMetrics(ctx, db.DB, c.Meters, dbCfg, log)
		if err != nil {
			return fmt.Errorf("instrument database metrics: %w", err)
		}
		c.onClose(func(context.Context) error {
			metrics.Stop()
			return nil
		})
	}
	return nil
}

func (c *Container) openStorage() error {
	cfg := c.Config.Storage
	if cfg.Endpoint == "" {
		c.Logger.Warn("storage endpoint not configured, keeping payment proofs in memory")
		c.Storage = storage.NewMemoryStorage(cfg.PublicBaseURL)
		return nil
	}
	s3, err := storage.NewReceiptStorage(&cfg, storage.WithLogger(c.Logger))
	if err != nil {
		return err
	}
	c.Storage = s3
	c.Logger.Info("receipt storage configured", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return nil
}

func (c *Container) idempotencyStore() (shared.IdempotencyStore, error) {
	store, err := cache.NewIdempotencyStore(c.Config.Idempotency, c.redisClient(), c.Config.Cache.KeyPrefix+"idem:")
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		c.onClose(func(context.Context) error { return closer.Close() })
	}
	return store, nil
}

// redisClient avoids handing a typed nil to the cache factories
func (c *Container) redisClient() redis.UniversalClient {
	if c.Redis == nil {
		return nil
	}
	return c.Redis
}

func (c *Container) buildServices(ctx context.Context) error {
	cfg, log, db := c.Config, c.Logger, c.Database.DB

	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	vaultRepo := persistence.NewGormVaultRepository(db)
	custodyRepo := persistence.NewGormCustodyAccountRepository(db)
	vaultTx := persistence.NewGormVaultTransactionRepository(db)
	custodyTx := persistence.NewGormCustodyTransactionRepository(db)
	scope := persistence.NewGormSettlementScope(db)

	numbers, err := persistence.NewSnowflakeNumberGenerator(cfg.Settlement.SnowflakeNode)
	if err != nil {
		return err
	}

	statsCache, err := cache.New[*invoicing.InvoiceStats](cfg.Cache, c.redisClient(), "stats", log)
	if err != nil {
		return err
	}
	bonusCache, err := cache.New[[]payroll.WorkerBonus](cfg.Cache, c.redisClient(), "bonus", log)
	if err != nil {
		return err
	}

	c.Invoices = settlement.NewInvoiceService(invoiceRepo, scope, numbers)
	c.Cancellation = settlement.NewCancellationService(scope)
	c.Collection = settlement.NewCollectionService(invoiceRepo, scope, c.Storage, c.Cancellation, nil)
	c.Collection.SetProofPolicy(settlement.ProofPolicy{
		MaxBytes:     cfg.Settlement.ProofMaxBytes,
		AllowedTypes: cfg.Settlement.ProofAllowedTypes,
	})
	c.Treasury = settlement.NewTreasuryService(vaultRepo, vaultTx, scope)
	c.Custody = settlement.NewCustodyService(custodyRepo, custodyTx, scope)
	c.Stats = settlement.NewStatsService(persistence.NewGormInvoiceStatsReader(db), statsCache, cfg.Cache.StatsTTL)
	c.Bonus = settlement.NewBonusService(persistence.NewGormBonusCalculator(db), bonusCache, cfg.Cache.BonusTTL)
	c.Reconciliation = settlement.NewReconciliationService(scope)
	c.ProofCleanup = settlement.NewProofCleanupService(invoiceRepo, c.Storage, nil, cfg.Settlement.OrphanProofGrace)

	c.Events = event.NewInMemoryEventBus(log)
	c.Events.Subscribe(event.NewAuditLogHandler(log))
	c.Events.Subscribe(event.NewStatsCacheInvalidator(statsCache))

	var observer settlement.OperationObserver
	if c.Meters != nil && c.Meters.IsEnabled() {
		metrics, err := telemetry.NewSettlementMetrics(c.Meters.Meter("fieldops/settlement"))
		if err != nil {
			return fmt.Errorf("create settlement metrics: %w", err)
		}
		c.Events.Subscribe(event.NewSettlementAmountRecorder(metrics))
		observer = metrics
	}

	c.Invoices.SetEventPublisher(c.Events)
	c.Collection.SetEventPublisher(c.Events)
	c.Cancellation.SetEventPublisher(c.Events)
	c.Treasury.SetEventPublisher(c.Events)
	c.Custody.SetEventPublisher(c.Events)
	if observer != nil {
		c.Invoices.SetObserver(observer)
		c.Collection.SetObserver(observer)
		c.Cancellation.SetObserver(observer)
		c.Treasury.SetObserver(observer)
		c.Custody.SetObserver(observer)
	}

	if err := c.Events.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	c.onClose(c.Events.Stop)
	return nil
}
