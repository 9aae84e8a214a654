// Package metrics observes the hit/miss behavior of the cache store.
// It reads the store's server-level counters, grades cache effectiveness,
// samples synthetic load, and inventories the keyspace. Everything here is
// observability: no operation in this package is load-bearing, so failures
// degrade to zeroed results instead of propagating.
package metrics

import "time"

// Snapshot is a point-in-time read of the store's server-level counters.
// Hits and misses are cumulative since the last stat reset; the ratios are
// derived at read time as hits/(hits+misses), guarded against a zero total.
type Snapshot struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	TotalOperations int64   `json:"total_operations"`
	HitRatio        float64 `json:"hit_ratio"`
	HitRatioPct     float64 `json:"hit_ratio_percentage"`
	MissRatio       float64 `json:"miss_ratio"`
	MissRatioPct    float64 `json:"miss_ratio_percentage"`

	// Informational server fields, not used in grading.
	Version          string `json:"version"`
	ConnectedClients int64  `json:"connected_clients"`
	UsedMemoryHuman  string `json:"used_memory_human"`
	UptimeSeconds    int64  `json:"uptime_in_seconds"`

	// Error is set instead of failing when the store is unreachable.
	Error string `json:"error,omitempty"`
}

// Grade is an ordinal effectiveness rating derived from a snapshot's hit ratio.
type Grade struct {
	Grade           string  `json:"grade"`
	Effectiveness   string  `json:"effectiveness"`
	HitRatio        float64 `json:"hit_ratio"`
	HitRatioPct     float64 `json:"hit_ratio_percentage"`
	Recommendation  string  `json:"recommendation"`
	TotalOperations int64   `json:"total_operations"`
}

// LoadReport summarizes a synthetic load sample. Its ratios cover only the
// probes of this sample and are independent of the server-level counters.
type LoadReport struct {
	Samples    int           `json:"tests_performed"`
	Hits       int           `json:"cache_hits"`
	Misses     int           `json:"cache_misses"`
	AvgLatency time.Duration `json:"average_response_time"`
	HitRatio   float64       `json:"hit_ratio"`
	MissRatio  float64       `json:"miss_ratio"`
}

// KeyInventory buckets the store's keys by category and samples a bounded
// number of TTLs for inspection.
type KeyInventory struct {
	TotalKeys          int                      `json:"total_keys"`
	Buckets            map[string]int           `json:"key_patterns"`
	PropertyKeySamples []string                 `json:"property_keys_samples"`
	SampleTTLs         map[string]time.Duration `json:"sample_ttls"`
}
