package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug", "console")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = NewLogger("WARN", "")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestInitOTel_Disabled(t *testing.T) {
	p, err := InitOTel(context.Background(), Config{}, "test")
	require.NoError(t, err)
	assert.NotNil(t, p.Tracer)
	assert.NotNil(t, p.Meter)
	assert.NoError(t, p.Shutdown(context.Background()))

	m, err := NewMetrics(p.Meter)
	require.NoError(t, err)
	assert.NotNil(t, m.ToolDuration)
	assert.NotNil(t, m.ToolErrors)
}

func TestInitOTel_NoneExporter(t *testing.T) {
	p, err := InitOTel(context.Background(), Config{Enabled: true, Exporter: "none"}, "test")
	require.NoError(t, err)
	_, span := StartSpan(context.Background(), p.Tracer, "probe")
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInitOTel_UnknownExporter(t *testing.T) {
	_, err := InitOTel(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"}, "test")
	assert.Error(t, err)
}

func TestStartSpan_RecordsToolName(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := StartSpan(context.Background(), tp.Tracer(ScopeName), "gateway.dispatch", AttrToolName.String("agi_detect_patterns"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "gateway.dispatch", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), AttrToolName.String("agi_detect_patterns"))
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter(ScopeName))
	require.NoError(t, err)

	m.ToolErrors.Add(context.Background(), 2)
	m.ToolDuration.Record(context.Background(), 0.25)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		names[md.Name] = true
	}
	assert.True(t, names["agi.tool.duration"])
	assert.True(t, names["agi.tool.errors"])
}
