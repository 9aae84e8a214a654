package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casafind/listingcache/cache/cachetest"
	"github.com/casafind/listingcache/logger"
	"github.com/casafind/listingcache/metrics"
)

func newCollector(store *cachetest.Store) *metrics.Collector {
	return metrics.NewCollector(store, logger.NewDiscard())
}

func TestSnapshotRatios(t *testing.T) {
	store := cachetest.New()
	store.SetServerStats(90, 10)

	snap := newCollector(store).Snapshot(context.Background())

	assert.Equal(t, int64(90), snap.Hits)
	assert.Equal(t, int64(10), snap.Misses)
	assert.Equal(t, int64(100), snap.TotalOperations)
	assert.InDelta(t, 0.9, snap.HitRatio, 1e-9)
	assert.InDelta(t, 0.1, snap.MissRatio, 1e-9)
	assert.InDelta(t, 90.0, snap.HitRatioPct, 1e-9)
	assert.Empty(t, snap.Error)
}

func TestSnapshotZeroOperations(t *testing.T) {
	store := cachetest.New()

	snap := newCollector(store).Snapshot(context.Background())

	assert.Zero(t, snap.TotalOperations)
	assert.Zero(t, snap.HitRatio)
	assert.Zero(t, snap.MissRatio)
}

func TestSnapshotStoreUnreachable(t *testing.T) {
	store := cachetest.New().WithInfoFailure(errors.New("connection refused"))

	snap := newCollector(store).Snapshot(context.Background())

	assert.NotEmpty(t, snap.Error)
	assert.Zero(t, snap.Hits)
	assert.Zero(t, snap.HitRatio)
}

func TestGradeThresholds(t *testing.T) {
	c := newCollector(cachetest.New())

	cases := []struct {
		hits, misses int64
		want         string
	}{
		{90, 10, "A+"},
		{89, 11, "A"},
		{80, 20, "A"},
		{70, 30, "B"},
		{50, 50, "C"},
		{30, 70, "D"},
		{29, 71, "F"},
		{0, 0, "F"},
	}

	for _, tc := range cases {
		snap := metrics.Snapshot{
			Hits:            tc.hits,
			Misses:          tc.misses,
			TotalOperations: tc.hits + tc.misses,
		}
		if snap.TotalOperations > 0 {
			snap.HitRatio = float64(tc.hits) / float64(snap.TotalOperations)
		}

		g := c.Grade(snap)
		assert.Equal(t, tc.want, g.Grade, "hits=%d misses=%d", tc.hits, tc.misses)
		assert.NotEmpty(t, g.Effectiveness)
		assert.NotEmpty(t, g.Recommendation)
	}
}

func TestResetCounters(t *testing.T) {
	store := cachetest.New()
	store.SetServerStats(5, 5)

	ok := newCollector(store).ResetCounters(context.Background())
	require.True(t, ok)

	info, err := store.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.KeyspaceHits)
}

func TestResetCountersFailure(t *testing.T) {
	store := cachetest.New().WithResetFailure(errors.New("NOPERM"))

	assert.False(t, newCollector(store).ResetCounters(context.Background()))
}

func TestSampleSyntheticLoadColdStore(t *testing.T) {
	store := cachetest.New()
	c := newCollector(store)

	report := c.SampleSyntheticLoad(context.Background(), 100)

	assert.Equal(t, 100, report.Samples)
	assert.Equal(t, 100, report.Misses)
	assert.Zero(t, report.Hits)
	assert.InDelta(t, 1.0, report.MissRatio, 1e-9)
	assert.Positive(t, report.AvgLatency)

	// Every probe key written during the sample must be gone.
	keys, err := store.ScanKeys(context.Background(), "loadprobe:*")
	require.NoError(t, err)
	assert.Empty(t, keys, "synthetic probes must leave zero residual keys")
}

func TestSampleSyntheticLoadWarmKeys(t *testing.T) {
	store := cachetest.New()
	ctx := context.Background()

	// Pre-warm half the probe keys.
	for i := 0; i < 10; i += 2 {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("loadprobe:%d", i), []byte("warm"), time.Minute))
	}

	report := newCollector(store).SampleSyntheticLoad(ctx, 10)

	assert.Equal(t, 5, report.Hits)
	assert.Equal(t, 5, report.Misses)
	assert.InDelta(t, 0.5, report.HitRatio, 1e-9)

	// Only the keys written by the sample are cleaned up; the pre-warmed
	// ones weren't created by it.
	keys, err := store.ScanKeys(ctx, "loadprobe:*")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}

func TestSampleSyntheticLoadCleansUpOnWriteFailures(t *testing.T) {
	store := cachetest.New().WithSetFailure(errors.New("write refused"))
	ctx := context.Background()

	report := newCollector(store).SampleSyntheticLoad(ctx, 20)
	assert.Equal(t, 20, report.Misses)

	keys, err := store.ScanKeys(ctx, "loadprobe:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestListKeysBuckets(t *testing.T) {
	store := cachetest.New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "all_properties", []byte("a"), time.Hour))
	require.NoError(t, store.Set(ctx, "property_count", []byte("b"), 30*time.Minute))
	require.NoError(t, store.Set(ctx, "pagecache:GET:/properties", []byte("c"), 15*time.Minute))
	require.NoError(t, store.Set(ctx, "session:alice", []byte("d"), 0))
	require.NoError(t, store.Set(ctx, "ratelimit:10.0.0.1", []byte("e"), 0))

	inv, err := newCollector(store).ListKeys(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, inv.TotalKeys)
	// "pagecache:GET:/properties" contains both labels; "properties" wins by order.
	// "property_count" lacks the "properties" substring, so it lands in "other".
	assert.Equal(t, 2, inv.Buckets["properties"])
	assert.Equal(t, 1, inv.Buckets["session"])
	assert.Equal(t, 2, inv.Buckets["other"])
	assert.Len(t, inv.PropertyKeySamples, 2)

	assert.Contains(t, inv.SampleTTLs, "all_properties")
	assert.Contains(t, inv.SampleTTLs, "property_count")
	assert.Contains(t, inv.SampleTTLs, "ratelimit:10.0.0.1")
	assert.InDelta(t, time.Hour.Seconds(), inv.SampleTTLs["all_properties"].Seconds(), 5)
	assert.Zero(t, inv.SampleTTLs["ratelimit:10.0.0.1"], "no expiry reports zero")
}

func TestListKeysScanFailure(t *testing.T) {
	store := cachetest.New().WithScanFailure(errors.New("scan refused"))

	_, err := newCollector(store).ListKeys(context.Background())
	assert.Error(t, err)
}
