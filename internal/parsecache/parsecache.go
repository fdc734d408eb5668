// Package parsecache implements the Parse Cache described in spec.md
// §4.3: a memo from (package, version) to a parsed dependency list,
// keyed by the package's own manifest content hash, with age- and
// size-bounded eviction and duplicate-parse collapsing.
//
// Grounded on the teacher's internal/gps/source_cache_bolt.go (a
// persistent, hash-addressed per-project cache) generalized from "VCS
// revision -> parsed manifest/lock" to "(package, version) -> parsed
// dependency list", and on gps/typed_radix.go's prefix-indexed lookup
// idiom, here used to invalidate every cached version of a package
// family in one sweep.
package parsecache

import (
	"sync"
	"time"

	"github.com/ccpm-project/ccpm/internal/clock"
	"github.com/ccpm-project/ccpm/internal/resolver"
)

// DefaultTTL is the age-based invalidation window, per spec.md §4.3.
const DefaultTTL = 24 * time.Hour

// DefaultMaxEntries is the eviction trigger on the number of cached
// entries, per spec.md §4.3.
const DefaultMaxEntries = 1000

// Entry mirrors spec.md §3's ParseCacheEntry.
type Entry struct {
	Package      string
	Version      string
	ManifestHash string
	Dependencies []resolver.Declared
	LastParsed   time.Time
	LastAccessed time.Time
	AccessCount  int64
	Valid        bool
}

type key struct {
	pkg, version string
}

// ParseFunc performs the actual (possibly expensive) parse of a
// package manifest given its content hash, returning the dependency
// list to cache.
type ParseFunc func() (deps []resolver.Declared, manifestHash string, err error)

// Cache is a thread-safe memo of parsed dependency lists. Duplicate
// concurrent parses of the same key collapse to a single in-flight
// call, per spec.md §4.3's concurrency invariant.
type Cache struct {
	clock       clock.Clock
	ttl         time.Duration
	maxEntries  int

	mu      sync.Mutex
	entries map[key]*Entry
	byPkg   map[string]map[key]bool // package -> keys, for prefix invalidation

	inflightMu sync.Mutex
	inflight   map[key]*call
}

type call struct {
	done chan struct{}
	deps []resolver.Declared
	hash string
	err  error
}

// New returns an empty Cache with the spec's default TTL and size
// bound.
func New(clk clock.Clock) *Cache {
	return &Cache{
		clock:      clk,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		entries:    make(map[key]*Entry),
		byPkg:      make(map[string]map[key]bool),
		inflight:   make(map[key]*call),
	}
}

// Get returns the cached dependency list for (pkg, version) if present,
// not expired, and its stored manifest_hash matches currentManifestHash
// (the SHA-256 of the on-disk manifest file right now). A mismatch or
// miss returns ok=false so the caller falls back to a live parse.
func (c *Cache) Get(pkg, version, currentManifestHash string) ([]resolver.Declared, bool) {
	k := key{pkg, version}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok || !e.Valid {
		return nil, false
	}
	if c.clock.Now().Sub(e.LastParsed) > c.ttl {
		return nil, false
	}
	if e.ManifestHash != currentManifestHash {
		return nil, false
	}

	e.LastAccessed = c.clock.Now()
	e.AccessCount++
	return e.Dependencies, true
}

// GetOrParse returns the cached entry if valid, else runs fn exactly
// once even if called concurrently for the same key from multiple
// goroutines, and stores the result.
func (c *Cache) GetOrParse(pkg, version, currentManifestHash string, fn ParseFunc) ([]resolver.Declared, error) {
	if deps, ok := c.Get(pkg, version, currentManifestHash); ok {
		return deps, nil
	}

	k := key{pkg, version}

	c.inflightMu.Lock()
	if cl, ok := c.inflight[k]; ok {
		c.inflightMu.Unlock()
		<-cl.done
		return cl.deps, cl.err
	}
	// A call that finished since the Get above has already stored its
	// result (put happens before the in-flight entry is removed).
	if deps, ok := c.Get(pkg, version, currentManifestHash); ok {
		c.inflightMu.Unlock()
		return deps, nil
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[k] = cl
	c.inflightMu.Unlock()

	cl.deps, cl.hash, cl.err = fn()
	if cl.err == nil {
		c.put(pkg, version, cl.hash, cl.deps)
	}
	close(cl.done)

	c.inflightMu.Lock()
	delete(c.inflight, k)
	c.inflightMu.Unlock()

	if cl.err != nil {
		return nil, cl.err
	}
	return cl.deps, nil
}

func (c *Cache) put(pkg, version, manifestHash string, deps []resolver.Declared) {
	k := key{pkg, version}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[k] = &Entry{
		Package: pkg, Version: version, ManifestHash: manifestHash,
		Dependencies: deps, LastParsed: now, LastAccessed: now,
		AccessCount: 0, Valid: true,
	}
	if c.byPkg[pkg] == nil {
		c.byPkg[pkg] = make(map[key]bool)
	}
	c.byPkg[pkg][k] = true

	c.evictIfOverCapacityLocked()
}

// Invalidate drops a single (pkg, version) entry explicitly.
func (c *Cache) Invalidate(pkg, version string) {
	k := key{pkg, version}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, k)
	if keys, ok := c.byPkg[pkg]; ok {
		delete(keys, k)
		if len(keys) == 0 {
			delete(c.byPkg, pkg)
		}
	}
}

// InvalidatePackage drops every cached version of pkg in one pass,
// using the package-prefix index rather than scanning every entry.
func (c *Cache) InvalidatePackage(pkg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.byPkg[pkg] {
		delete(c.entries, k)
	}
	delete(c.byPkg, pkg)
}

// evictIfOverCapacityLocked evicts by last-access then by
// access-count ascending once the cache exceeds maxEntries, per
// spec.md §4.3. Caller must hold c.mu.
func (c *Cache) evictIfOverCapacityLocked() {
	if len(c.entries) <= c.maxEntries {
		return
	}

	type candidate struct {
		k key
		e *Entry
	}
	var candidates []candidate
	for k, e := range c.entries {
		candidates = append(candidates, candidate{k, e})
	}

	// Sort ascending by last-access (oldest first), tie-broken by
	// ascending access count.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0; j-- {
			a, b := candidates[j-1], candidates[j]
			swap := a.e.LastAccessed.After(b.e.LastAccessed) ||
				(a.e.LastAccessed.Equal(b.e.LastAccessed) && a.e.AccessCount > b.e.AccessCount)
			if !swap {
				break
			}
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}

	toEvict := len(c.entries) - c.maxEntries
	for i := 0; i < toEvict && i < len(candidates); i++ {
		k := candidates[i].k
		delete(c.entries, k)
		if keys, ok := c.byPkg[k.pkg]; ok {
			delete(keys, k)
			if len(keys) == 0 {
				delete(c.byPkg, k.pkg)
			}
		}
	}
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
