package cache

import (
	"sort"
	"time"
)

// Policy is a tagged variant, not a type hierarchy, per Design Notes
// §9: "Cache eviction policies are tagged variants ... the eviction
// function takes the policy value and dispatches."
type Policy int

const (
	PolicyLRU Policy = iota
	PolicyLFU
	PolicySize
	PolicyTime
	PolicyHybrid
)

// victims returns keys of unpinned entries in eviction order (first
// victim first), for the given policy. All five policies share the
// common frame described in spec.md §4.2: never select a pinned entry.
func victims(entries map[string]*Entry, idx *lruIndex, now time.Time, maxAge time.Duration, policy Policy) []string {
	candidates := make([]string, 0, len(entries))
	for key, e := range entries {
		if !e.Pinned {
			candidates = append(candidates, key)
		}
	}

	switch policy {
	case PolicyLRU:
		return filterOrdered(idx.tailToHead(), candidates)
	case PolicyLFU:
		sort.Slice(candidates, func(i, j int) bool {
			ei, ej := entries[candidates[i]], entries[candidates[j]]
			if ei.AccessCount != ej.AccessCount {
				return ei.AccessCount < ej.AccessCount
			}
			return idx.position(candidates[i]) > idx.position(candidates[j])
		})
	case PolicySize:
		sort.Slice(candidates, func(i, j int) bool {
			ei, ej := entries[candidates[i]], entries[candidates[j]]
			if ei.SizeBytes != ej.SizeBytes {
				return ei.SizeBytes > ej.SizeBytes
			}
			return idx.position(candidates[i]) > idx.position(candidates[j])
		})
	case PolicyTime:
		var aged []string
		for _, key := range candidates {
			if now.Sub(entries[key].LastAccess) > maxAge {
				aged = append(aged, key)
			}
		}
		sort.Slice(aged, func(i, j int) bool {
			return entries[aged[i]].LastAccess.Before(entries[aged[j]].LastAccess)
		})
		return aged
	case PolicyHybrid:
		sort.Slice(candidates, func(i, j int) bool {
			si := hybridScore(entries[candidates[i]], idx, now)
			sj := hybridScore(entries[candidates[j]], idx, now)
			if si != sj {
				return si < sj
			}
			// Tie-break by LRU position: the less-recently-used entry
			// (further from head) sorts first, per spec.md §8.
			return idx.position(candidates[i]) > idx.position(candidates[j])
		})
	}
	return candidates
}

// hybridScore implements spec.md §4.2's default policy:
//
//	s = 0.4*recency + 0.4*frequency + 0.2*inverse_size
//	recency = 1/(hours_since_access + 1)
//	inverse_size = 1/(size_bytes + 1)
//
// "frequency" is not separately normalized in the spec text; we use the
// raw access count, consistent with the LFU policy's own ordering,
// since the spec gives no normalization constant.
func hybridScore(e *Entry, idx *lruIndex, now time.Time) float64 {
	hours := now.Sub(e.LastAccess).Hours()
	if hours < 0 {
		hours = 0
	}
	recency := 1.0 / (hours + 1.0)
	frequency := float64(e.AccessCount)
	inverseSize := 1.0 / (float64(e.SizeBytes) + 1.0)
	return 0.4*recency + 0.4*frequency + 0.2*inverseSize
}

// filterOrdered restricts an already-ordered key list to those present
// in allowed, preserving order.
func filterOrdered(ordered, allowed []string) []string {
	set := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		set[k] = true
	}
	out := make([]string, 0, len(allowed))
	for _, k := range ordered {
		if set[k] {
			out = append(out, k)
		}
	}
	return out
}

// healthTier classifies how aggressively the background cleaner should
// act, per spec.md §4.2's background cleaner thresholds.
type healthTier int

const (
	healthOK healthTier = iota
	healthLight                // >80%: light pass, oldest 10%
	healthModerate             // >90%: moderate pass, 25%
	healthAggressive           // >95%: aggressive pass, 50%
)

func classifyHealth(usedFraction float64) healthTier {
	switch {
	case usedFraction > 0.95:
		return healthAggressive
	case usedFraction > 0.90:
		return healthModerate
	case usedFraction > 0.80:
		return healthLight
	}
	return healthOK
}

func (h healthTier) fraction() float64 {
	switch h {
	case healthLight:
		return 0.10
	case healthModerate:
		return 0.25
	case healthAggressive:
		return 0.50
	}
	return 0
}
