package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/sourcing/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newTestMeter builds a meter provider backed by a manual reader.
func newTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

// sumFor returns the counter value of the data point whose attributes contain all of attrs.
func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range attrs {
			v, found := dp.Attributes.Value(kv.Key)
			if !found || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "sourcing-test",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, cfg, mp.GetConfig())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounterAndHistogram(t *testing.T) {
	mp, reader := newTestMeter(t)
	meter := mp.Meter("test")
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "requests_total", "Requests", "{requests}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrHTTPMethod.String("GET"))
	counter.Add(ctx, 2, telemetry.AttrHTTPMethod.String("GET"))
	counter.Inc(ctx, telemetry.AttrHTTPMethod.String("POST"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "latency_seconds",
		Unit:       "s",
		Boundaries: telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 150*time.Millisecond)
	hist.Record(ctx, 2)

	data := collect(t, reader)
	assert.Equal(t, int64(3), sumFor(t, data["requests_total"], telemetry.AttrHTTPMethod.String("GET")))
	assert.Equal(t, int64(1), sumFor(t, data["requests_total"], telemetry.AttrHTTPMethod.String("POST")))

	h, ok := data["latency_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(2), h.DataPoints[0].Count)
	assert.InDelta(t, 2.15, h.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, telemetry.HTTPDurationBuckets, h.DataPoints[0].Bounds)
}

func TestBucketsAreSorted(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"http":     telemetry.HTTPDurationBuckets,
		"external": telemetry.ExternalCallBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			assert.Less(t, buckets[i-1], buckets[i], "%s buckets must increase", name)
		}
	}
}

func TestNewSourcingMetrics_NilMeter(t *testing.T) {
	sm, err := telemetry.NewSourcingMetrics(telemetry.SourcingMetricsConfig{})
	assert.Nil(t, sm)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Equal(t, "NewSourcingMetrics: meter cannot be nil", err.Error())
}

func TestSourcingMetrics_NilReceiver(t *testing.T) {
	var sm *telemetry.SourcingMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		sm.RecordFeedCall(ctx, "bestsellers", 3)
		sm.RecordFallbackStage(ctx, "paid_api", telemetry.OutcomeFailure)
		sm.RecordTokenRefresh(ctx, telemetry.OutcomeSuccess)
		sm.RecordImport(ctx, "fallback", "amazon", telemetry.OutcomeSuccess, time.Second)
		sm.RecordSearch(ctx, 10)
	})
}

func TestSourcingMetrics_NoopMeter(t *testing.T) {
	sm, err := telemetry.NewSourcingMetrics(telemetry.SourcingMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)
	assert.NotPanics(t, func() { sm.RecordSearch(context.Background(), 1) })
}

func TestSourcingMetrics_Records(t *testing.T) {
	mp, reader := newTestMeter(t)
	sm, err := telemetry.NewSourcingMetrics(telemetry.SourcingMetricsConfig{
		Meter:  mp.Meter("sourcing"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	ctx := context.Background()

	sm.RecordFeedCall(ctx, "bestsellers", 12)
	sm.RecordFeedCall(ctx, "bestsellers", 0)
	sm.RecordFeedCall(ctx, "new_arrivals", 5)
	sm.RecordFallbackStage(ctx, "structured_parse", telemetry.OutcomeEmpty)
	sm.RecordFallbackStage(ctx, "headless_render", telemetry.OutcomeSuccess)
	sm.RecordTokenRefresh(ctx, telemetry.OutcomeFailure)
	sm.RecordImport(ctx, "structured_api", "aliexpress", telemetry.OutcomeSuccess, 800*time.Millisecond)
	sm.RecordSearch(ctx, 42)

	data := collect(t, reader)

	calls := data["sourcing_feed_calls_total"]
	assert.Equal(t, int64(1), sumFor(t, calls, telemetry.AttrFeed.String("bestsellers"), telemetry.AttrOutcome.String(telemetry.OutcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, calls, telemetry.AttrFeed.String("bestsellers"), telemetry.AttrOutcome.String(telemetry.OutcomeEmpty)))
	assert.Equal(t, int64(17), sumFor(t, data["sourcing_feed_listings_total"]))

	stages := data["sourcing_fallback_stage_total"]
	assert.Equal(t, int64(1), sumFor(t, stages, telemetry.AttrStage.String("headless_render"), telemetry.AttrOutcome.String(telemetry.OutcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, data["sourcing_token_refresh_total"], telemetry.AttrOutcome.String(telemetry.OutcomeFailure)))
	assert.Equal(t, int64(1), sumFor(t, data["sourcing_import_total"],
		telemetry.AttrImportPath.String("structured_api"), telemetry.AttrPlatform.String("aliexpress")))

	h, ok := data["sourcing_import_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.InDelta(t, 0.8, h.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, telemetry.ExternalCallBuckets, h.DataPoints[0].Bounds)

	size, ok := data["sourcing_search_filtered_listings"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Equal(t, 42.0, size.DataPoints[0].Sum)
}
