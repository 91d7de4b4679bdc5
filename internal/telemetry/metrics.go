// Package telemetry provides OpenTelemetry instrumentation for the sync server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the crawl metrics meter
	SyncMetricsMeterName = "github.com/lojistack/erp-sync-server/sync"

	// LookupMetricsMeterName is the name used for the lookup metrics meter
	LookupMetricsMeterName = "github.com/lojistack/erp-sync-server/lookup"
)

// SyncMetrics holds the OpenTelemetry instruments for crawl operation metrics
type SyncMetrics struct {
	crawlDuration  metric.Float64Histogram
	entitiesSynced metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	crawlDuration, err := meter.Float64Histogram(
		"erpsync_crawl_duration_seconds",
		metric.WithDescription("Duration of crawl invocations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	entitiesSynced, err := meter.Int64Counter(
		"erpsync_entities_synced_total",
		metric.WithDescription("Number of entities written to the cache by crawls"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		crawlDuration:  crawlDuration,
		entitiesSynced: entitiesSynced,
	}, nil
}

// RecordCrawl records the duration and yield of a crawl invocation
func (m *SyncMetrics) RecordCrawl(
	ctx context.Context, jobKind, tenant string, duration time.Duration, entities int64, success bool,
) {
	if m == nil || m.crawlDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("job_kind", jobKind),
		attribute.String("tenant", tenant),
		attribute.Bool("success", success),
	}

	m.crawlDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.entitiesSynced.Add(ctx, entities, metric.WithAttributes(attrs...))
}

// LookupMetrics holds the OpenTelemetry instruments for on-demand lookups
type LookupMetrics struct {
	lookupDuration metric.Float64Histogram
}

// NewLookupMetrics creates a new LookupMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewLookupMetrics(provider metric.MeterProvider) (*LookupMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(LookupMetricsMeterName)

	lookupDuration, err := meter.Float64Histogram(
		"erpsync_lookup_duration_seconds",
		metric.WithDescription("Duration of on-demand lookups in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	return &LookupMetrics{
		lookupDuration: lookupDuration,
	}, nil
}

// RecordLookup records the duration of an on-demand lookup
func (m *LookupMetrics) RecordLookup(ctx context.Context, duration time.Duration, found bool) {
	if m == nil || m.lookupDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("found", found),
	}

	m.lookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
