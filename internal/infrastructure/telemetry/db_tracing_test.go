package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tracedReceipt struct {
	ID     uint   `gorm:"primaryKey"`
	Amount string `gorm:"size:32"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedReceipt{}))
	return db
}

func setupRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestNewDBTracingPlugin_AppliesDefaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)
}

func TestDBTracingPlugin_RegisterOtelGorm(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := setupTestDB(t)
		p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

		require.NoError(t, p.RegisterOtelGorm(db))
		assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
	})

	t.Run("enabled registers callbacks and logs configuration", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		db := setupTestDB(t)
		p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.New(core))

		require.NoError(t, p.RegisterOtelGorm(db))
		assert.NotNil(t, db.Callback().Query().Get("otel_timing:after_query"))
		assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))
		require.Equal(t, 1, logs.FilterMessage("Database tracing enabled").Len())
		assert.Equal(t, "sqlite", logs.All()[0].ContextMap()["db_system"])
	})

	t.Run("double registration fails", func(t *testing.T) {
		db := setupTestDB(t)
		p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

		require.NoError(t, p.RegisterOtelGorm(db))
		assert.Error(t, p.RegisterOtelGorm(db))
	})
}

func TestDBTracingPlugin_QueriesStillWork(t *testing.T) {
	tp, sr := setupRecorder(t)
	db := setupTestDB(t)
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, p.RegisterOtelGorm(db))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "payment")
	require.NoError(t, db.WithContext(ctx).Create(&tracedReceipt{Amount: "60.00"}).Error)

	var got tracedReceipt
	require.NoError(t, db.WithContext(ctx).First(&got).Error)
	parent.End()

	assert.Equal(t, "60.00", got.Amount)
	assert.NotEmpty(t, sr.Ended())
}

func TestAnnotateSpan(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: 50 * time.Millisecond}, zap.NewNop())

	t.Run("adds table and rows affected", func(t *testing.T) {
		tp, sr := setupRecorder(t)
		ctx, span := tp.Tracer("test").Start(context.Background(), "insert")

		db := setupTestDB(t).WithContext(ctx)
		db.Statement.Table = "receipts"
		db.Statement.RowsAffected = 1
		p.annotateSpan(db)
		span.End()

		attrs := spanAttrs(sr.Ended()[0])
		assert.Equal(t, "receipts", attrs["db.sql.table"].AsString())
		assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
		_, slow := attrs["db.slow_query"]
		assert.False(t, slow)
	})

	t.Run("marks slow queries", func(t *testing.T) {
		tp, sr := setupRecorder(t)
		ctx, span := tp.Tracer("test").Start(context.Background(), "slow")
		ctx = withQueryStartTimeAt(ctx, time.Now().Add(-time.Second))

		db := setupTestDB(t).WithContext(ctx)
		p.annotateSpan(db)
		span.End()

		ended := sr.Ended()[0]
		assert.True(t, spanAttrs(ended)["db.slow_query"].AsBool())
		require.Len(t, ended.Events(), 1)
		assert.Equal(t, "slow_query_warning", ended.Events()[0].Name)
	})

	t.Run("records errors but not missing rows", func(t *testing.T) {
		tp, sr := setupRecorder(t)

		ctx, failing := tp.Tracer("test").Start(context.Background(), "failing")
		db := setupTestDB(t).WithContext(ctx)
		db.Error = errors.New("constraint violated")
		p.annotateSpan(db)
		failing.End()

		ctx, missing := tp.Tracer("test").Start(context.Background(), "missing")
		db = setupTestDB(t).WithContext(ctx)
		db.Error = gorm.ErrRecordNotFound
		p.annotateSpan(db)
		missing.End()

		ended := sr.Ended()
		require.Len(t, ended, 2)
		assert.Equal(t, codes.Error, ended[0].Status().Code)
		assert.Equal(t, codes.Unset, ended[1].Status().Code)
	})

	t.Run("ignores non-recording spans", func(t *testing.T) {
		db := setupTestDB(t).WithContext(context.Background())
		assert.NotPanics(t, func() { p.annotateSpan(db) })
	})
}

func TestWithQueryStartTime(t *testing.T) {
	ctx := WithQueryStartTime(context.Background())
	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), start, time.Second)
}
