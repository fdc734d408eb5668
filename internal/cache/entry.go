// Package cache implements the three-tier content-addressed Cache
// (spec.md §4.2): project, user, and global tiers sharing one eviction
// engine, one LRU index, and one persistence format.
//
// Grounded on the teacher's internal/gps/source_cache_bolt.go (tiered,
// persisted source cache keyed by project identifier) and
// gps/verify/lock.go (radix-indexed project trees), adapted from "cache
// of fetched VCS metadata" to "cache of installed package directories".
package cache

import (
	"time"

	"github.com/ccpm-project/ccpm/internal/ccpmtypes"
)

// Entry is one cached package version. Grounded on spec.md §3's
// CacheEntry record.
type Entry struct {
	Key          string
	Package      string
	Version      string
	Path         string
	SizeBytes    int64
	InstallTime  time.Time
	LastAccess   time.Time
	AccessCount  int64
	Pinned       bool
}

// entryKey defers to ccpmtypes.PackageId for the canonical "name:version"
// form shared with the graph and warmup record keys.
func entryKey(pkg, version string) string {
	return ccpmtypes.PackageId{Name: pkg, Version: version}.Key()
}
