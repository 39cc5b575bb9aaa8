package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type probe struct {
	ID   uint
	Name string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&probe{}))
	return db
}

func TestDetectOperationType(t *testing.T) {
	tests := map[string]string{
		"select * from invoices":                                "SELECT",
		"  INSERT INTO vaults VALUES (1)":                       "INSERT",
		"update custody_accounts set x = 1":                     "UPDATE",
		"DELETE FROM invoice_items":                             "DELETE",
		"WITH t AS (SELECT 1) SELECT * FROM t":                  "SELECT",
		"SELECT * FROM calculate_worker_bonuses(p_month => $1)": "SELECT",
		"VACUUM": "OTHER",
	}
	for in, want := range tests {
		assert.Equal(t, want, detectOperationType(in), in)
	}
}

func TestDBConfig_Defaults(t *testing.T) {
	cfg := DBConfig{}.withDefaults()
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
	assert.Equal(t, "postgresql", cfg.DBName)

	cfg = DBConfig{SlowQueryThreshold: time.Second, DBName: "sqlite"}.withDefaults()
	assert.Equal(t, time.Second, cfg.SlowQueryThreshold)
	assert.Equal(t, "sqlite", cfg.DBName)
}

func TestDBMetrics_Instrument(t *testing.T) {
	reader, mp := newTestMeter(t)
	db := openSQLite(t)

	// 1ns makes every query slow.
	m, err := NewDBMetrics(mp.Meter("db.client"), DBConfig{SlowQueryThreshold: time.Nanosecond}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Instrument(db))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&probe{Name: "a"}).Error)
	var got []probe
	require.NoError(t, db.WithContext(ctx).Find(&got).Error)
	require.NoError(t, db.WithContext(ctx).Model(&probe{}).Where("id = ?", 1).Update("name", "b").Error)
	var n int64
	require.NoError(t, db.WithContext(ctx).Raw("SELECT count(*) FROM probes").Scan(&n).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	m.StartPoolStats(ctx, sqlDB)
	m.Stop()
	m.Stop()

	metrics := collect(t, reader)
	queries := metrics["db_query_total"].Data.(metricdata.Sum[int64])
	byOp := map[string]int64{}
	for _, dp := range queries.DataPoints {
		v, _ := dp.Attributes.Value(AttrDBOperation)
		byOp[v.AsString()] = dp.Value
	}
	assert.Equal(t, int64(1), byOp["INSERT"])
	assert.Equal(t, int64(2), byOp["SELECT"])
	assert.Equal(t, int64(1), byOp["UPDATE"])

	slow := metrics["db_slow_query_total"].Data.(metricdata.Sum[int64])
	assert.NotEmpty(t, slow.DataPoints)

	pool := metrics["db_pool_connections_max"].Data.(metricdata.Gauge[int64])
	require.Len(t, pool.DataPoints, 1)
	assert.Equal(t, int64(1), pool.DataPoints[0].Value)
}

func TestInstrumentMetrics_DisabledProvider(t *testing.T) {
	db := openSQLite(t)
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	m, err := InstrumentMetrics(context.Background(), db, mp, DBConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestInstrumentTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	require.NoError(t, InstrumentTracing(openSQLite(t), DBConfig{}, zaptest.NewLogger(t)))

	db2 := openSQLite(t)
	require.NoError(t, InstrumentTracing(db2, DBConfig{TraceEnabled: true, SlowQueryThreshold: time.Nanosecond, DBName: "sqlite"}, zaptest.NewLogger(t)))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db2.WithContext(ctx).Create(&probe{Name: "x"}).Error)
	parent.End()

	var dbSpan sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() != "parent" {
			dbSpan = s
		}
	}
	require.NotNil(t, dbSpan)
	attrs := map[string]any{}
	for _, kv := range dbSpan.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "probes", attrs["db.sql.table"])
	assert.Equal(t, int64(1), attrs["db.rows_affected"])
	assert.Equal(t, true, attrs["db.slow_query"])
}
