package cache

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/termie/go-shutil"

	"github.com/ccpm-project/ccpm/internal/clock"
	"github.com/ccpm-project/ccpm/internal/hasher"
)

// Budget bounds a single tier's resource usage, per spec.md §4.2.
type Budget struct {
	MaxSizeBytes   int64
	MaxItems       int
	MinKeepItems   int
	SoftSizeFrac   float64 // default 0.80
	SoftItemsFrac  float64 // default 0.90
	MaxAge         time.Duration
	Policy         Policy
}

// DefaultBudget returns the spec's stated defaults (soft thresholds
//80%/90%, hybrid policy).
func DefaultBudget(maxSize int64, maxItems int) Budget {
	return Budget{
		MaxSizeBytes:  maxSize,
		MaxItems:      maxItems,
		MinKeepItems:  1,
		SoftSizeFrac:  0.80,
		SoftItemsFrac: 0.90,
		MaxAge:        30 * 24 * time.Hour,
		Policy:        PolicyHybrid,
	}
}

// Statistics is a snapshot of one tier's counters, per spec.md §4.2
// "stats()".
type Statistics struct {
	TotalItems    int
	TotalSizeBytes int64
	HitCount      int64
	MissCount     int64
	HitRate       float64
	LastCleanup   time.Time
}

// Handle is the stable, reference-counted reference to a cache entry's
// path returned by Get. Per Design Notes §9, an eviction that targets
// the same key unlinks the entry from the index under the lock but
// defers physical removal until every outstanding Handle is released.
type Handle struct {
	path  string
	entry *refCountedEntry
}

// Path returns the directory this handle refers to. Valid until
// Release is called.
func (h *Handle) Path() string { return h.path }

// Release drops this handle's reference. Once the last handle on an
// unlinked entry is released, its directory is physically removed.
func (h *Handle) Release() {
	h.entry.release()
}

type refCountedEntry struct {
	mu        sync.Mutex
	path      string
	refs      int
	unlinked  bool
	log       *logrus.Entry
}

func (r *refCountedEntry) acquire() *Handle {
	r.mu.Lock()
	r.refs++
	r.mu.Unlock()
	return &Handle{path: r.path, entry: r}
}

func (r *refCountedEntry) markUnlinked() {
	r.mu.Lock()
	r.unlinked = true
	shouldRemove := r.refs == 0
	r.mu.Unlock()
	if shouldRemove {
		r.physicallyRemove()
	}
}

func (r *refCountedEntry) release() {
	r.mu.Lock()
	r.refs--
	shouldRemove := r.unlinked && r.refs <= 0
	r.mu.Unlock()
	if shouldRemove {
		r.physicallyRemove()
	}
}

func (r *refCountedEntry) physicallyRemove() {
	if err := os.RemoveAll(r.path); err != nil && r.log != nil {
		r.log.WithError(err).WithField("path", r.path).Warn("failed to remove evicted cache directory")
	}
}

// Tier is a single cache tier (project, user, or global): an entry
// table, an LRU index, and a cumulative size counter all guarded by one
// exclusive lock, per spec.md §5 "Shared-resource policy".
type Tier struct {
	Name string
	Root string
	Budget Budget

	clock  clock.Clock
	hash   hasher.Hasher
	log    *logrus.Entry

	mu       sync.Mutex
	entries  map[string]*Entry
	refs     map[string]*refCountedEntry
	lru      *lruIndex
	totalSize int64
	stats    Statistics
	pathIdx  *pathIndex
}

// NewTier constructs an empty tier rooted at root.
func NewTier(name, root string, budget Budget, clk clock.Clock, h hasher.Hasher, log *logrus.Entry) *Tier {
	return &Tier{
		Name:    name,
		Root:    root,
		Budget:  budget,
		clock:   clk,
		hash:    h,
		log:     log,
		entries: make(map[string]*Entry),
		refs:    make(map[string]*refCountedEntry),
		lru:     newLRUIndex(),
		pathIdx: newPathIndex(),
	}
}

// Get looks up (pkg, version), bumping access_count and moving the key
// to the LRU head. Thread-safe. Returns a Handle whose Path is stable
// even across a concurrent eviction, per Design Notes §9.
func (t *Tier) Get(pkg, version string) (*Handle, bool) {
	key := entryKey(pkg, version)

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		t.stats.MissCount++
		t.recomputeHitRateLocked()
		t.mu.Unlock()
		return nil, false
	}
	e.LastAccess = t.clock.Now()
	e.AccessCount++
	t.lru.touch(key)
	t.stats.HitCount++
	t.recomputeHitRateLocked()
	rc := t.refs[key]
	t.mu.Unlock()

	return rc.acquire(), true
}

// Admit inserts a populated directory into the cache. populatedDir is
// moved into the tier's directory atomically via staging-then-rename,
// per spec.md §4.2 "Atomicity of admission".
func (t *Tier) Admit(pkg, version, populatedDir string) error {
	size, err := directorySize(populatedDir)
	if err != nil {
		return errors.Wrap(err, "cache: computing admitted directory size")
	}
	if t.Budget.MaxSizeBytes > 0 && size > t.Budget.MaxSizeBytes {
		return &DiskFull{Requested: size, MaxSize: t.Budget.MaxSizeBytes}
	}

	finalPath := filepath.Join(t.Root, sanitizeKey(entryKey(pkg, version)))
	if err := t.stageAndRename(populatedDir, finalPath); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := entryKey(pkg, version)
	now := t.clock.Now()
	e := &Entry{
		Key: key, Package: pkg, Version: version, Path: finalPath,
		SizeBytes: size, InstallTime: now, LastAccess: now, AccessCount: 0,
	}
	t.entries[key] = e
	t.refs[key] = &refCountedEntry{path: finalPath, log: t.log}
	t.lru.touch(key)
	t.totalSize += size
	t.stats.TotalItems = len(t.entries)
	t.stats.TotalSizeBytes = t.totalSize
	t.pathIdx.insert(pkg, key)

	t.evictIfOverBudgetLocked()
	return nil
}

// stageAndRename writes through a staging directory under the cache
// root, then renames atomically, per spec.md §4.2.
func (t *Tier) stageAndRename(src, dst string) error {
	if err := os.MkdirAll(t.Root, 0o755); err != nil {
		return errors.Wrap(err, "cache: creating tier root")
	}
	staging := filepath.Join(t.Root, "staging-"+sanitizeKey(filepath.Base(src))+"-"+randSuffix())
	if err := shutil.CopyTree(src, staging, nil); err != nil {
		return errors.Wrap(err, "cache: staging populated directory")
	}
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrap(err, "cache: clearing previous entry path")
	}
	if err := os.Rename(staging, dst); err != nil {
		return errors.Wrap(err, "cache: renaming staged directory into place")
	}
	return nil
}

// Pin toggles an entry's eviction exemption.
func (t *Tier) Pin(pkg, version string, pinned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[entryKey(pkg, version)]; ok {
		e.Pinned = pinned
	}
}

// Resync recomputes size_bytes for an entry whose backing directory was
// mutated in place (the Incremental Updater's patch-apply path, spec.md
// §4.3 step 3, edits files under an existing cache entry directly
// rather than going through Admit). Restores the CacheEntry invariant
// that size_bytes equals the sum of file sizes under path.
func (t *Tier) Resync(pkg, version string) error {
	key := entryKey(pkg, version)

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		t.mu.Unlock()
		return errors.Errorf("cache: resync of unknown entry %q", key)
	}
	path := e.Path
	t.mu.Unlock()

	size, err := directorySize(path)
	if err != nil {
		return errors.Wrapf(err, "cache: resyncing size for %q", key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok = t.entries[key]
	if !ok {
		return errors.Errorf("cache: entry %q evicted during resync", key)
	}
	t.totalSize += size - e.SizeBytes
	e.SizeBytes = size
	t.stats.TotalSizeBytes = t.totalSize
	return nil
}

// Remove explicitly removes an entry. Fails silently (returns false)
// for missing or pinned entries unless forced.
func (t *Tier) Remove(pkg, version string, force bool) bool {
	key := entryKey(pkg, version)

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || (e.Pinned && !force) {
		t.mu.Unlock()
		return false
	}
	t.unlinkLocked(key)
	t.mu.Unlock()
	return true
}

// unlinkLocked removes key from the index and entry table under the
// lock; the backing directory is removed once the refcount drains.
// Caller must hold t.mu.
func (t *Tier) unlinkLocked(key string) {
	e := t.entries[key]
	delete(t.entries, key)
	t.lru.remove(key)
	t.totalSize -= e.SizeBytes
	t.stats.TotalItems = len(t.entries)
	t.stats.TotalSizeBytes = t.totalSize
	t.pathIdx.remove(e.Package, key)

	rc := t.refs[key]
	delete(t.refs, key)
	rc.markUnlinked()
}

// Cleanup runs eviction to bring the tier below its soft thresholds.
func (t *Tier) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runHealthCleanupLocked()
	softSize := int64(float64(t.Budget.MaxSizeBytes) * t.Budget.SoftSizeFrac)
	softItems := int(float64(t.Budget.MaxItems) * t.Budget.SoftItemsFrac)
	for _, key := range victims(t.entries, t.lru, t.clock.Now(), t.Budget.MaxAge, t.Budget.Policy) {
		overSize := t.Budget.MaxSizeBytes > 0 && t.totalSize > softSize
		overItems := t.Budget.MaxItems > 0 && len(t.entries) > softItems
		if len(t.entries) <= t.Budget.MinKeepItems || (!overSize && !overItems) {
			break
		}
		t.unlinkLocked(key)
	}
	t.stats.LastCleanup = t.clock.Now()
}

// Stats returns a snapshot of this tier's counters.
func (t *Tier) Stats() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tier) recomputeHitRateLocked() {
	total := t.stats.HitCount + t.stats.MissCount
	if total == 0 {
		t.stats.HitRate = 0
		return
	}
	t.stats.HitRate = float64(t.stats.HitCount) / float64(total)
}

// evictIfOverBudgetLocked is triggered on admission when
// total_size + new_size > max_size OR item_count >= max_items, per
// spec.md §4.2. Caller must hold t.mu.
func (t *Tier) evictIfOverBudgetLocked() {
	overSize := t.Budget.MaxSizeBytes > 0 && t.totalSize > t.Budget.MaxSizeBytes
	overItems := t.Budget.MaxItems > 0 && len(t.entries) > t.Budget.MaxItems
	if !overSize && !overItems {
		return
	}

	candidates := victims(t.entries, t.lru, t.clock.Now(), t.Budget.MaxAge, t.Budget.Policy)
	for _, key := range candidates {
		if len(t.entries) <= t.Budget.MinKeepItems {
			break
		}
		overSize = t.Budget.MaxSizeBytes > 0 && t.totalSize > t.Budget.MaxSizeBytes
		overItems = t.Budget.MaxItems > 0 && len(t.entries) > t.Budget.MaxItems
		if !overSize && !overItems {
			break
		}
		t.unlinkLocked(key)
	}
}

// runHealthCleanupLocked implements the background cleaner's
// light/moderate/aggressive passes, per spec.md §4.2. Caller must hold
// t.mu.
func (t *Tier) runHealthCleanupLocked() {
	if t.Budget.MaxSizeBytes <= 0 {
		return
	}
	used := float64(t.totalSize) / float64(t.Budget.MaxSizeBytes)
	tier := classifyHealth(used)
	if tier == healthOK {
		return
	}

	// Health passes remove the oldest (least recently used) entries
	// first, whatever the tier's admission-time policy.
	candidates := victims(t.entries, t.lru, t.clock.Now(), t.Budget.MaxAge, PolicyLRU)
	n := int(float64(len(candidates)) * tier.fraction())
	for i := 0; i < n && i < len(candidates); i++ {
		if len(t.entries) <= t.Budget.MinKeepItems {
			break
		}
		t.unlinkLocked(candidates[i])
	}
}

func directorySize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch r {
		case '/', '\\', ':', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

var randSuffixCounter int64
var randSuffixMu sync.Mutex

// randSuffix gives staging directories unique names without pulling in
// math/rand (and its global-state surprises) for what's just a
// collision-avoidance suffix.
func randSuffix() string {
	randSuffixMu.Lock()
	randSuffixCounter++
	n := randSuffixCounter
	randSuffixMu.Unlock()
	return time.Now().Format("150405.000000000") + "-" + itoa(n)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
