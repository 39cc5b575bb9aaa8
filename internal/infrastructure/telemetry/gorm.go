package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls GORM instrumentation.
type DBConfig struct {
	TraceEnabled       bool
	LogFullSQL         bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
	DBName             string
}

func (c DBConfig) withDefaults() DBConfig {
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval <= 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	if c.DBName == "" {
		c.DBName = "postgresql"
	}
	return c
}

type queryStartKey struct{}

// gormHook is one before/after pair on each GORM callback chain.
type gormHook struct {
	name   string
	before func(*gorm.DB)
	after  func(db *gorm.DB, operation string)
}

// register installs h around every GORM processor. After hooks run ahead of
// otelgorm's span end so annotations land on the query span. Row and Raw
// queries derive the operation from the SQL text.
func (h gormHook) register(db *gorm.DB) error {
	cb := db.Callback()
	for _, kind := range []string{"create", "query", "update", "delete", "row", "raw"} {
		core, otelAfter := "gorm:"+kind, "otel:after:"+kind
		before, after := h.name+":before_"+kind, h.name+":after_"+kind
		afterFn := h.afterFor(kind)
		var err error
		switch kind {
		case "create":
			err = errors.Join(
				cb.Create().Before(core).Register(before, h.before),
				cb.Create().After(core).Before(otelAfter).Register(after, afterFn))
		case "query":
			err = errors.Join(
				cb.Query().Before(core).Register(before, h.before),
				cb.Query().After(core).Before(otelAfter).Register(after, afterFn))
		case "update":
			err = errors.Join(
				cb.Update().Before(core).Register(before, h.before),
				cb.Update().After(core).Before(otelAfter).Register(after, afterFn))
		case "delete":
			err = errors.Join(
				cb.Delete().Before(core).Register(before, h.before),
				cb.Delete().After(core).Before(otelAfter).Register(after, afterFn))
		case "row":
			err = errors.Join(
				cb.Row().Before(core).Register(before, h.before),
				cb.Row().After(core).Before(otelAfter).Register(after, afterFn))
		case "raw":
			err = errors.Join(
				cb.Raw().Before(core).Register(before, h.before),
				cb.Raw().After(core).Before(otelAfter).Register(after, afterFn))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (h gormHook) afterFor(kind string) func(*gorm.DB) {
	operation := map[string]string{"create": "INSERT", "query": "SELECT", "update": "UPDATE", "delete": "DELETE"}[kind]
	return func(tx *gorm.DB) {
		op := operation
		if op == "" {
			op = detectOperationType(tx.Statement.SQL.String())
		}
		h.after(tx, op)
	}
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context == nil {
		db.Statement.Context = context.Background()
	}
	db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
}

func queryElapsed(db *gorm.DB) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(queryStartKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

func detectOperationType(query string) string {
	query = strings.ToUpper(strings.TrimSpace(query))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(query, op) {
			return op
		}
	}
	if strings.HasPrefix(query, "WITH") {
		return "SELECT"
	}
	return "OTHER"
}

// InstrumentTracing installs otelgorm and annotates its spans with the table,
// rows affected and a slow_query flag.
func InstrumentTracing(db *gorm.DB, cfg DBConfig, logger *zap.Logger) error {
	if !cfg.TraceEnabled {
		return nil
	}
	cfg = cfg.withDefaults()

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	hook := gormHook{
		name:   "fieldops_trace",
		before: markQueryStart,
		after: func(tx *gorm.DB, _ string) {
			annotateSpan(tx, cfg.SlowQueryThreshold)
		},
	}
	if err := hook.register(db); err != nil {
		return err
	}
	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, slow time.Duration) {
	if tx.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	if elapsed, ok := queryElapsed(tx); ok && elapsed > slow {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", slow.Milliseconds()),
		))
	}
}

// DBMetrics records query counts, latency and connection pool state.
type DBMetrics struct {
	queries     *Counter
	duration    *Histogram
	slowQueries *Counter
	pool        *Gauge
	poolMax     *Gauge

	cfg      DBConfig
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBMetrics registers the database instruments on meter.
func NewDBMetrics(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &DBMetrics{cfg: cfg.withDefaults(), logger: logger, stopCh: make(chan struct{})}
	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueries, err = NewCounter(meter, "db_slow_query_total", "Queries slower than the configured threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.pool, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolMax, err = NewGauge(meter, "db_pool_connections_max", "Pool connection limit", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Instrument installs the query callbacks on db.
func (m *DBMetrics) Instrument(db *gorm.DB) error {
	return gormHook{
		name:   "fieldops_metrics",
		before: markQueryStart,
		after: func(tx *gorm.DB, operation string) {
			elapsed, _ := queryElapsed(tx)
			m.RecordQuery(tx.Statement.Context, operation, tx.Statement.Table, elapsed)
		},
	}.register(db)
}

// RecordQuery records one finished query.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	if operation == "" {
		operation = "OTHER"
	}
	m.queries.Inc(ctx, AttrDBOperation.String(operation))
	m.duration.RecordDuration(ctx, d, AttrDBOperation.String(operation))
	if d > m.cfg.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueries.Inc(ctx, AttrDBTable.String(table))
	}
}

// RecordPoolStats records one sample of the pool state.
func (m *DBMetrics) RecordPoolStats(ctx context.Context, stats sql.DBStats) {
	m.poolMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.pool.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.pool.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.pool.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// StartPoolStats samples sqlDB.Stats() every PoolStatsInterval until Stop
// or ctx is done.
func (m *DBMetrics) StartPoolStats(ctx context.Context, sqlDB *sql.DB) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PoolStatsInterval)
		defer ticker.Stop()
		m.RecordPoolStats(ctx, sqlDB.Stats())
		for {
			select {
			case <-ticker.C:
				m.RecordPoolStats(ctx, sqlDB.Stats())
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// InstrumentMetrics wires DBMetrics into db when the meter provider exports.
// It returns nil metrics when there is nothing to record into.
func InstrumentMetrics(ctx context.Context, db *gorm.DB, mp *MeterProvider, cfg DBConfig, logger *zap.Logger) (*DBMetrics, error) {
	if mp == nil || !mp.IsEnabled() {
		return nil, nil
	}
	m, err := NewDBMetrics(mp.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := m.Instrument(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	m.StartPoolStats(ctx, sqlDB)
	logger.Info("Database metrics enabled", zap.Duration("slow_query_threshold", m.cfg.SlowQueryThreshold))
	return m, nil
}
