// Package warmup implements the Warmup Engine of spec.md §4.5: a
// priority-ordered, speculative preloader that populates the cache
// ahead of demand.
//
// Grounded on the teacher's ensure.go solve-then-write-vendor pipeline
// for the "analyze project, then materialize packages" shape, and on
// gps/version_queue.go's bucketed-queue idiom (there: versions tried in
// preference order; here: WarmupRecords drawn in priority order),
// adapted to the five-level priority scheme and popularity scoring
// spec.md §4.5 specifies.
package warmup

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ccpm-project/ccpm/internal/cache"
	"github.com/ccpm-project/ccpm/internal/resolver"
)

// Priority is the bucket a WarmupRecord is drawn from; workers always
// exhaust Critical before High, and so on, per spec.md §4.5.
type Priority int

const (
	Critical Priority = iota
	High
	Normal
	Low
	Background
	numPriorities
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Background:
		return "background"
	}
	return "unknown"
}

// Record mirrors spec.md §3's WarmupRecord.
type Record struct {
	Package         string
	Version         string
	SourceURL       string
	Priority        Priority
	EstimatedSize   int64
	AccessFrequency float64
	PopularityScore float64
	Essential       bool
	Preloaded       bool
}

func recordKey(pkg, version string) string { return pkg + "@" + version }

// Score computes spec.md §4.5's popularity formula.
func Score(r Record) float64 {
	sizeMB := float64(r.EstimatedSize) / (1 << 20)
	if sizeMB < 1 {
		sizeMB = 1
	}
	essential := 0.0
	if r.Essential {
		essential = 10
	}
	return 0.4*r.AccessFrequency + essential + 1000/sizeMB
}

// Strategy selects how start() drives preloading, per spec.md §4.5.
type Strategy int

const (
	Immediate Strategy = iota
	Async
	BackgroundStrategy
	OnDemand
)

// Preloader performs the actual work of populating the cache for one
// record; the real implementation fetches and admits via the
// executor/fetcher/cache trio, kept as an injected seam here so this
// package stays free of a hard dependency on any one Fetcher.
type Preloader func(ctx context.Context, r Record) error

// ResourceGuard bounds concurrent and total preload cost, per spec.md
// §4.5's "Resource guard".
type ResourceGuard struct {
	MaxPreloadSize       int64
	MaxConcurrentPreloads int
}

// DefaultResourceGuard returns spec.md §4.5's defaults.
func DefaultResourceGuard() ResourceGuard {
	return ResourceGuard{MaxPreloadSize: 1 << 30, MaxConcurrentPreloads: 4}
}

// Stats mirrors spec.md §6's WarmupStats.
type Stats struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
}

// Engine is the Warmup Engine: a registry of Records plus the running
// state of a preload pass.
type Engine struct {
	guard     ResourceGuard
	preload   Preloader
	log       *logrus.Entry

	mu       sync.Mutex
	records  map[string]*Record
	buckets  [numPriorities][]*Record

	stopped  chan struct{}
	stopOnce sync.Once
	running  sync.WaitGroup

	progressMu sync.Mutex
	total      int
	completed  int
	stats      Stats

	loadFunc func() float64 // system load sampler, used by Background strategy
}

// New constructs an Engine. preload is called once per record that
// passes the resource guard.
func New(preload Preloader, guard ResourceGuard, log *logrus.Entry) *Engine {
	return &Engine{
		preload: preload,
		guard:   guard,
		log:     log,
		records: make(map[string]*Record),
		stopped: make(chan struct{}),
	}
}

// SetLoadSampler installs the system-load function the Background
// strategy consults. Without one, Background behaves like Async.
func (e *Engine) SetLoadSampler(f func() float64) {
	e.loadFunc = f
}

// Register adds or replaces a WarmupRecord.
func (e *Engine) Register(r Record) {
	r.PopularityScore = Score(r)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records[recordKey(r.Package, r.Version)] = &r
}

// Unregister removes a record. If version == "", every version of
// pkg is removed.
func (e *Engine) Unregister(pkg, version string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if version != "" {
		delete(e.records, recordKey(pkg, version))
		return
	}
	for k, r := range e.records {
		if r.Package == pkg {
			delete(e.records, k)
		}
	}
}

// bucketLocked groups records by priority, sorted descending by
// popularity score within each bucket, per spec.md §4.5.
func (e *Engine) bucketLocked() {
	for i := range e.buckets {
		e.buckets[i] = e.buckets[i][:0]
	}
	for _, r := range e.records {
		e.buckets[r.Priority] = append(e.buckets[r.Priority], r)
	}
	for i := range e.buckets {
		bucket := e.buckets[i]
		sort.SliceStable(bucket, func(a, b int) bool {
			return bucket[a].PopularityScore > bucket[b].PopularityScore
		})
	}
}

// ordered returns every registered record in priority-then-score
// order, a flat draw sequence for Immediate and Async strategies.
func (e *Engine) ordered() []*Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bucketLocked()

	var out []*Record
	for _, bucket := range e.buckets {
		out = append(out, bucket...)
	}
	return out
}

// Start begins preloading per strategy. Immediate blocks until every
// eligible record has been attempted; Async and Background return
// immediately and run workers in the background; OnDemand registers
// records as opportunistic candidates only (OpportunisticPreload is
// then the caller's job, driven by cache misses).
func (e *Engine) Start(ctx context.Context, strategy Strategy) {
	e.stopped = make(chan struct{})

	switch strategy {
	case Immediate:
		e.runSerial(ctx)
	case Async:
		e.runAsync(ctx, e.guard.MaxConcurrentPreloads, false)
	case BackgroundStrategy:
		e.runAsync(ctx, e.guard.MaxConcurrentPreloads, true)
	case OnDemand:
		// no workers; records sit ready for OpportunisticPreload.
	}
}

// Stop signals running workers to exit after their current package;
// idempotent, per spec.md §4.5.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopped) })
	e.running.Wait()
}

func (e *Engine) runSerial(ctx context.Context) {
	for _, r := range e.ordered() {
		select {
		case <-e.stopped:
			return
		default:
		}
		e.attempt(ctx, r)
	}
}

func (e *Engine) runAsync(ctx context.Context, workers int, idleOnly bool) {
	if workers <= 0 {
		workers = 1
	}
	items := e.ordered()
	work := make(chan *Record, len(items))
	for _, r := range items {
		work <- r
	}
	close(work)

	e.progressMu.Lock()
	e.total = len(items)
	e.progressMu.Unlock()

	for i := 0; i < workers; i++ {
		e.running.Add(1)
		go func() {
			defer e.running.Done()
			for r := range work {
				select {
				case <-e.stopped:
					return
				default:
				}
				if idleOnly && e.loadFunc != nil && e.loadFunc() > 0.5 {
					continue
				}
				e.attempt(ctx, r)
			}
		}()
	}
}

func (e *Engine) attempt(ctx context.Context, r *Record) {
	if r.EstimatedSize > e.guard.MaxPreloadSize {
		e.progressMu.Lock()
		e.stats.Skipped++
		e.progressMu.Unlock()
		return
	}

	err := e.preload(ctx, *r)

	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.completed++
	if err != nil {
		e.stats.Failed++
		if e.log != nil {
			e.log.WithError(err).WithField("package", r.Package).Warn("warmup: preload failed")
		}
		return
	}
	e.stats.Completed++

	e.mu.Lock()
	if rec, ok := e.records[recordKey(r.Package, r.Version)]; ok {
		rec.Preloaded = true
	}
	e.mu.Unlock()
}

// Progress returns (current, total, percentage) per spec.md §4.5.
func (e *Engine) Progress() (current, total int, percentage float64) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	if e.total == 0 {
		return 0, 0, 0
	}
	return e.completed, e.total, float64(e.completed) / float64(e.total) * 100
}

// Statistics returns a snapshot of completed/skipped/failed counts.
func (e *Engine) Statistics() Stats {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	s := e.stats
	s.Total = e.total
	return s
}

// CacheHandle is the narrow slice of *cache.Cache the opportunistic
// OnDemand path needs, kept as an interface so warmup never imports a
// concrete Fetcher.
type CacheHandle interface {
	Get(pkg, version string) (*cache.Handle, cache.TierName, bool)
}

// OpportunisticPreload is the OnDemand strategy's hook: called on a
// cache miss, it looks up whether a matching record exists and, if
// so, attempts to preload it inline.
func (e *Engine) OpportunisticPreload(ctx context.Context, c CacheHandle, pkg, version string) {
	if _, _, hit := c.Get(pkg, version); hit {
		return
	}
	e.mu.Lock()
	r, ok := e.records[recordKey(pkg, version)]
	e.mu.Unlock()
	if !ok {
		return
	}
	e.attempt(ctx, r)
}

// SmartPreload implements spec.md §4.5's "Smart preload": Critical
// from the project's direct dependencies, High from a curated popular
// list, Normal from packages marked essential, each deduplicated
// against what is already registered.
func (e *Engine) SmartPreload(direct []resolver.Declared, popular []Record, essential []Record) {
	seen := make(map[string]bool)

	e.mu.Lock()
	for k := range e.records {
		seen[k] = true
	}
	e.mu.Unlock()

	for _, d := range direct {
		k := recordKey(d.Name, "")
		if seen[k] {
			continue
		}
		seen[k] = true
		e.Register(Record{Package: d.Name, Priority: Critical})
	}
	for _, r := range popular {
		k := recordKey(r.Package, r.Version)
		if seen[k] {
			continue
		}
		seen[k] = true
		r.Priority = High
		e.Register(r)
	}
	for _, r := range essential {
		k := recordKey(r.Package, r.Version)
		if seen[k] {
			continue
		}
		seen[k] = true
		r.Priority = Normal
		r.Essential = true
		e.Register(r)
	}
}
