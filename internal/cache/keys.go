// Package cache provides an optional Redis-backed cache in front of the
// Vessel Repository's aggregate queries.
//
// This file defines the cache key naming convention used across the
// repository's optional caching layer: a resource prefix, then an
// identifier, joined with ":" for Redis best-practice key structure.
package cache

import "fmt"

// Key prefixes for vessel-frame's cached resources.
const (
	PrefixStats  = "stats"
	PrefixVessel = "vessel"
)

// VesselStatsKey is the cache key for the repository's aggregate stats
// query — the one query expensive enough, and stable enough between
// writes, to be worth caching.
func VesselStatsKey() string {
	return fmt.Sprintf("%s:global", PrefixStats)
}

// VesselKey is the cache key for a single vessel record, keyed by MMSI.
func VesselKey(mmsi string) string {
	return fmt.Sprintf("%s:%s", PrefixVessel, mmsi)
}

// VesselPattern matches every cached vessel record, for bulk
// invalidation.
func VesselPattern() string {
	return fmt.Sprintf("%s:*", PrefixVessel)
}
