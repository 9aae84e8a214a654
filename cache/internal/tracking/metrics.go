// Package tracking records client-side cache operation metrics via OpenTelemetry.
// These instruments observe the latency and hit/miss behavior of individual
// store calls; they are independent of the server-level keyspace counters
// read by the metrics collector.
package tracking

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for cache metrics instrumentation
	cacheMeterName = "listingcache/cache"

	// Metric names following OpenTelemetry semantic conventions
	metricCacheOperationDuration = "db.client.operation.duration" // Histogram in seconds
	metricCacheHit               = "cache.hit"                    // Counter for cache hits
	metricCacheMiss              = "cache.miss"                   // Counter for cache misses

	// Attribute keys per OTel semantic conventions
	attrDBSystem       = "db.system.name"
	attrDBOperation    = "db.operation.name"
	attrErrorType      = "error.type"
	attrCacheHitStatus = "cache.hit"
)

// Cache operation names
const (
	OpGet           = "get"
	OpSet           = "set"
	OpDelete        = "delete"
	OpDeletePattern = "delete_pattern"
	OpScan          = "scan"
	OpTTL           = "ttl"
	OpInfo          = "info"
	OpResetStats    = "resetstat"
	OpHealth        = "ping"
)

// isLookupOperation returns true if the operation is a cache lookup.
// Only lookups track hit/miss statistics.
func isLookupOperation(operation string) bool {
	return operation == OpGet
}

var (
	meterOnce sync.Once

	cacheOperationDuration metric.Float64Histogram
	cacheHitCounter        metric.Int64Counter
	cacheMissCounter       metric.Int64Counter
)

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize cache metric %s: %v\n", metricName, err)
	}
}

// initCacheMeter initializes the OpenTelemetry meter and cache metric instruments.
func initCacheMeter() {
	meter := otel.Meter(cacheMeterName)

	var err error

	cacheOperationDuration, err = meter.Float64Histogram(
		metricCacheOperationDuration,
		metric.WithDescription("Duration of cache store operations"),
		metric.WithUnit("s"),
	)
	logMetricError(metricCacheOperationDuration, err)

	cacheHitCounter, err = meter.Int64Counter(
		metricCacheHit,
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	logMetricError(metricCacheHit, err)

	cacheMissCounter, err = meter.Int64Counter(
		metricCacheMiss,
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	logMetricError(metricCacheMiss, err)
}

// RecordCacheOperation records metrics for a single store operation.
// It should be called after each operation completes.
func RecordCacheOperation(ctx context.Context, operation string, duration time.Duration, hit bool, err error) {
	meterOnce.Do(initCacheMeter)

	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, "redis"),
		attribute.String(attrDBOperation, operation),
	}

	if isLookupOperation(operation) {
		attrs = append(attrs, attribute.Bool(attrCacheHitStatus, hit))
	}

	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, classifyError(err)))
	}

	if cacheOperationDuration != nil {
		cacheOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	if isLookupOperation(operation) {
		recordHitMissCounters(ctx, hit, attrs)
	}
}

// classifyError returns an error classification string for metrics.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "closed"):
		return "closed"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	default:
		return "error"
	}
}

// recordHitMissCounters records cache hit or miss counters for lookup operations.
func recordHitMissCounters(ctx context.Context, hit bool, attrs []attribute.KeyValue) {
	if hit {
		if cacheHitCounter != nil {
			cacheHitCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		return
	}
	if cacheMissCounter != nil {
		cacheMissCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
