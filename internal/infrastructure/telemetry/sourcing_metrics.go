package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

// Sourcing metric attribute keys
var (
	AttrFeed       = attribute.Key("feed")
	AttrStage      = attribute.Key("stage")
	AttrOutcome    = attribute.Key("outcome")
	AttrImportPath = attribute.Key("import_path")
	AttrPlatform   = attribute.Key("platform")
)

// SourcingMetrics tracks the product-sourcing pipeline.
// A nil *SourcingMetrics is valid and records nothing.
type SourcingMetrics struct {
	logger *zap.Logger

	feedCallsTotal     *Counter
	feedListingsTotal  *Counter
	fallbackStageTotal *Counter
	tokenRefreshTotal  *Counter
	importTotal        *Counter
	importDuration     *Histogram
	searchResultSize   *Histogram
}

// SourcingMetricsConfig holds configuration for sourcing metrics.
type SourcingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSourcingMetrics creates a new SourcingMetrics instance.
func NewSourcingMetrics(cfg SourcingMetricsConfig) (*SourcingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SourcingMetrics{logger: logger}

	var err error
	if sm.feedCallsTotal, err = NewCounter(cfg.Meter,
		"sourcing_feed_calls_total", "Feed requests by feed and outcome", "{calls}"); err != nil {
		return nil, err
	}
	if sm.feedListingsTotal, err = NewCounter(cfg.Meter,
		"sourcing_feed_listings_total", "Listings returned by feed requests", "{listings}"); err != nil {
		return nil, err
	}
	if sm.fallbackStageTotal, err = NewCounter(cfg.Meter,
		"sourcing_fallback_stage_total", "Fallback extraction attempts by stage and outcome", "{attempts}"); err != nil {
		return nil, err
	}
	if sm.tokenRefreshTotal, err = NewCounter(cfg.Meter,
		"sourcing_token_refresh_total", "Platform token refreshes by outcome", "{refreshes}"); err != nil {
		return nil, err
	}
	if sm.importTotal, err = NewCounter(cfg.Meter,
		"sourcing_import_total", "Product imports by path and outcome", "{imports}"); err != nil {
		return nil, err
	}
	if sm.importDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "sourcing_import_duration_seconds",
		Description: "Product import latency",
		Unit:        "s",
		Boundaries:  ExternalCallBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.searchResultSize, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "sourcing_search_filtered_listings",
		Description: "Listings remaining after filtering, before truncation",
		Unit:        "{listings}",
		Boundaries:  []float64{0, 5, 10, 20, 50, 100, 200},
	}); err != nil {
		return nil, err
	}
	return sm, nil
}

// RecordFeedCall records one feed request and the number of listings it returned
func (sm *SourcingMetrics) RecordFeedCall(ctx context.Context, feed string, listings int) {
	if sm == nil {
		return
	}
	outcome := OutcomeSuccess
	if listings == 0 {
		outcome = OutcomeEmpty
	}
	sm.feedCallsTotal.Inc(ctx, AttrFeed.String(feed), AttrOutcome.String(outcome))
	sm.feedListingsTotal.Add(ctx, int64(listings), AttrFeed.String(feed))
}

// RecordFallbackStage records one extraction attempt
func (sm *SourcingMetrics) RecordFallbackStage(ctx context.Context, stage, outcome string) {
	if sm == nil {
		return
	}
	sm.fallbackStageTotal.Inc(ctx, AttrStage.String(stage), AttrOutcome.String(outcome))
}

// RecordTokenRefresh records one token refresh
func (sm *SourcingMetrics) RecordTokenRefresh(ctx context.Context, outcome string) {
	if sm == nil {
		return
	}
	sm.tokenRefreshTotal.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordImport records a finished import
func (sm *SourcingMetrics) RecordImport(ctx context.Context, path, platform, outcome string, d time.Duration) {
	if sm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrImportPath.String(path),
		AttrPlatform.String(platform),
		AttrOutcome.String(outcome),
	}
	sm.importTotal.Inc(ctx, attrs...)
	sm.importDuration.RecordDuration(ctx, d, attrs...)
}

// RecordSearch records the filtered result size of a search
func (sm *SourcingMetrics) RecordSearch(ctx context.Context, afterFiltering int) {
	if sm == nil {
		return
	}
	sm.searchResultSize.Record(ctx, float64(afterFiltering))
}
