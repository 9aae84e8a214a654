package metrics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/logger"
)

const (
	// probeKeyPrefix namespaces the synthetic keys written by SampleSyntheticLoad.
	probeKeyPrefix = "loadprobe:"

	// probeTTL keeps leaked probe entries short-lived should cleanup ever be
	// interrupted by a process crash.
	probeTTL = time.Minute

	// defaultProbeDelay simulates the expensive recomputation a miss would
	// trigger in a real read path.
	defaultProbeDelay = time.Millisecond

	// TTL sampling bounds for the key inventory.
	propertyTTLSamples = 5
	otherTTLSamples    = 3

	// propertyKeySampleLimit caps the listing-key sample list.
	propertyKeySampleLimit = 10
)

// Bucket labels, checked in order; the first case-insensitive substring match
// wins.
const (
	bucketProperties = "properties"
	bucketCache      = "cache"
	bucketSession    = "session"
	bucketOther      = "other"
)

// Collector reads and analyzes the store's hit/miss statistics.
type Collector struct {
	store      cache.Store
	log        logger.Logger
	probeDelay time.Duration
}

// NewCollector creates a collector over the given store.
func NewCollector(store cache.Store, log logger.Logger) *Collector {
	return &Collector{
		store:      store,
		log:        log,
		probeDelay: defaultProbeDelay,
	}
}

// Snapshot reads the server-level counters and derives the hit/miss ratios.
// When the store is unreachable it returns a zeroed snapshot with the Error
// field set; it never fails.
func (c *Collector) Snapshot(ctx context.Context) Snapshot {
	info, err := c.store.Info(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to read cache store statistics")
		return Snapshot{Error: err.Error()}
	}

	snap := Snapshot{
		Hits:             info.KeyspaceHits,
		Misses:           info.KeyspaceMisses,
		TotalOperations:  info.KeyspaceHits + info.KeyspaceMisses,
		Version:          info.Version,
		ConnectedClients: info.ConnectedClients,
		UsedMemoryHuman:  info.UsedMemoryHuman,
		UptimeSeconds:    info.UptimeSeconds,
	}

	if snap.TotalOperations > 0 {
		snap.HitRatio = float64(snap.Hits) / float64(snap.TotalOperations)
		snap.MissRatio = 1 - snap.HitRatio
	}
	snap.HitRatioPct = roundPct(snap.HitRatio)
	snap.MissRatioPct = roundPct(snap.MissRatio)

	c.log.Info().
		Int64("hits", snap.Hits).
		Int64("misses", snap.Misses).
		Float64("hit_ratio", snap.HitRatio).
		Int64("total_operations", snap.TotalOperations).
		Msg("Cache store metrics")

	return snap
}

// Grade maps a snapshot's hit ratio to an ordinal effectiveness grade.
// Thresholds are inclusive-lower, checked in descending order, first match wins.
func (c *Collector) Grade(snap Snapshot) Grade {
	g := Grade{
		HitRatio:        snap.HitRatio,
		HitRatioPct:     snap.HitRatioPct,
		TotalOperations: snap.TotalOperations,
	}

	switch {
	case snap.HitRatio >= 0.9:
		g.Grade = "A+"
		g.Effectiveness = "Excellent"
		g.Recommendation = "Cache is working very effectively. Consider increasing cache TTL for even better performance."
	case snap.HitRatio >= 0.8:
		g.Grade = "A"
		g.Effectiveness = "Very Good"
		g.Recommendation = "Cache is effective. Monitor for any degradation."
	case snap.HitRatio >= 0.7:
		g.Grade = "B"
		g.Effectiveness = "Good"
		g.Recommendation = "Cache is working well. Consider optimizing cache keys or increasing cache duration."
	case snap.HitRatio >= 0.5:
		g.Grade = "C"
		g.Effectiveness = "Fair"
		g.Recommendation = "Cache effectiveness could be improved. Review cache strategies and TTL values."
	case snap.HitRatio >= 0.3:
		g.Grade = "D"
		g.Effectiveness = "Poor"
		g.Recommendation = "Cache is not very effective. Consider implementing more aggressive caching or reviewing cache keys."
	default:
		g.Grade = "F"
		g.Effectiveness = "Very Poor"
		g.Recommendation = "Cache is ineffective. Consider redesigning caching strategy or investigating why cache misses are so high."
	}

	c.log.Info().
		Str("grade", g.Grade).
		Str("effectiveness", g.Effectiveness).
		Float64("hit_ratio", g.HitRatio).
		Msg("Cache effectiveness analysis")

	return g
}

// ResetCounters resets the store's hit/miss statistics.
// Reports success; never raises.
func (c *Collector) ResetCounters(ctx context.Context) bool {
	if err := c.store.ResetStats(ctx); err != nil {
		c.log.Error().Err(err).Msg("Failed to reset cache store statistics")
		return false
	}

	c.log.Info().Msg("Cache store statistics reset")
	return true
}

// SampleSyntheticLoad probes n synthetic keys to measure round-trip behavior.
// A miss sleeps briefly (simulating recomputation) and writes the key with a
// short TTL; a hit just counts. Every key written during the sample is
// deleted before returning, even when individual probes fail.
func (c *Collector) SampleSyntheticLoad(ctx context.Context, n int) LoadReport {
	report := LoadReport{Samples: n}
	if n <= 0 {
		return report
	}

	written := make([]string, 0, n)
	defer func() {
		// Cleanup runs detached from the caller's deadline so an abandoned
		// request can't leak probe keys until their TTL fires.
		cleanupCtx := context.WithoutCancel(ctx)
		for _, key := range written {
			if _, err := c.store.Delete(cleanupCtx, key); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("Failed to clean up probe key")
			}
		}
	}()

	var total time.Duration
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s%d", probeKeyPrefix, i)

		start := time.Now()
		_, err := c.store.Get(ctx, key)
		if err != nil {
			// Both a genuine miss and an unreachable store count as misses;
			// the probe then pays the simulated recomputation cost.
			report.Misses++
			time.Sleep(c.probeDelay)

			value := []byte(fmt.Sprintf("value_%d", i))
			if serr := c.store.Set(ctx, key, value, probeTTL); serr == nil {
				written = append(written, key)
			}
		} else {
			report.Hits++
		}
		total += time.Since(start)
	}

	report.AvgLatency = total / time.Duration(n)
	report.HitRatio = float64(report.Hits) / float64(n)
	report.MissRatio = float64(report.Misses) / float64(n)

	c.log.Info().
		Int("hits", report.Hits).
		Int("misses", report.Misses).
		Dur("avg_latency", report.AvgLatency).
		Msg("Cache performance sample")

	return report
}

// ListKeys inventories the keyspace: scans every key, buckets them by
// category, and samples TTLs for a bounded subset.
func (c *Collector) ListKeys(ctx context.Context) (KeyInventory, error) {
	keys, err := c.store.ScanKeys(ctx, "*")
	if err != nil {
		return KeyInventory{}, err
	}

	inv := KeyInventory{
		TotalKeys:  len(keys),
		Buckets:    make(map[string]int),
		SampleTTLs: make(map[string]time.Duration),
	}

	var propertyKeys, otherKeys []string
	for _, key := range keys {
		switch bucketFor(key) {
		case bucketProperties:
			propertyKeys = append(propertyKeys, key)
			inv.Buckets[bucketProperties]++
		case bucketCache:
			inv.Buckets[bucketCache]++
		case bucketSession:
			inv.Buckets[bucketSession]++
		default:
			otherKeys = append(otherKeys, key)
			inv.Buckets[bucketOther]++
		}
	}

	inv.PropertyKeySamples = propertyKeys
	if len(inv.PropertyKeySamples) > propertyKeySampleLimit {
		inv.PropertyKeySamples = inv.PropertyKeySamples[:propertyKeySampleLimit]
	}

	sampleKeys := make([]string, 0, propertyTTLSamples+otherTTLSamples)
	sampleKeys = append(sampleKeys, firstN(propertyKeys, propertyTTLSamples)...)
	sampleKeys = append(sampleKeys, firstN(otherKeys, otherTTLSamples)...)
	for _, key := range sampleKeys {
		ttl, terr := c.store.TTL(ctx, key)
		if terr != nil {
			// Key may have expired between scan and sampling.
			continue
		}
		inv.SampleTTLs[key] = ttl
	}

	return inv, nil
}

// bucketFor categorizes a key. Labels are checked in a fixed order and the
// first case-insensitive substring match wins.
func bucketFor(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, bucketProperties):
		return bucketProperties
	case strings.Contains(lower, bucketCache):
		return bucketCache
	case strings.Contains(lower, bucketSession):
		return bucketSession
	default:
		return bucketOther
	}
}

func firstN(keys []string, n int) []string {
	if len(keys) > n {
		return keys[:n]
	}
	return keys
}

func roundPct(ratio float64) float64 {
	return math.Round(ratio*100*100) / 100
}
