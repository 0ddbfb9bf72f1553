package telemetry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/omkarjtg/ecomm/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingExporter keeps every exported log record
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) all() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdklog.Record(nil), e.records...)
}

func TestNewLoggerProvider_DisabledLeavesLoggerAlone(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []telemetry.Config{
		{Enabled: false, ExportLogs: true, CollectorEndpoint: "localhost:14317"},
		{Enabled: true, ExportLogs: false, CollectorEndpoint: "localhost:14317"},
	} {
		lp, err := telemetry.NewLoggerProvider(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, lp.IsEnabled())

		base := zap.NewNop()
		assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
		assert.NoError(t, lp.ForceFlush(ctx))
		assert.NoError(t, lp.Shutdown(ctx))
	}
}

func TestLoggerProvider_BridgeShipsEntries(t *testing.T) {
	ctx := context.Background()
	exporter := &recordingExporter{}
	lp := telemetry.NewLoggerProviderWithProcessor(telemetry.Config{ServiceName: "storefront"},
		sdklog.NewSimpleProcessor(exporter), nil)
	require.True(t, lp.IsEnabled())

	core, local := observer.New(zapcore.DebugLevel)
	log := lp.Bridge(zap.New(core), zapcore.InfoLevel)

	traceID := trace.TraceID{0x01, 0x02}
	spanCtx := trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	}))
	log.Debug("Cart updated by another tab")
	log.Error("Paid checkout abandoned", zap.String("intent_id", "i-1"), zap.Any("ctx", spanCtx))
	require.NoError(t, lp.ForceFlush(ctx))

	assert.Equal(t, 2, local.Len(), "local output keeps every level")

	records := exporter.all()
	require.Len(t, records, 1, "debug stays below the export level")
	assert.Equal(t, "Paid checkout abandoned", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityError, records[0].Severity())
	assert.Equal(t, traceID, records[0].TraceID())

	require.NoError(t, lp.Shutdown(ctx))
}
