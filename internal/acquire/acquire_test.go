package acquire

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccpm-project/ccpm/internal/cache"
	"github.com/ccpm-project/ccpm/internal/clock"
	"github.com/ccpm-project/ccpm/internal/executor"
	"github.com/ccpm-project/ccpm/internal/hasher"
)

// fakeFetcher populates targetPath by copying a fixed source tree,
// standing in for the real git/HTTP Fetcher so tests never touch the
// network or a real VCS binary.
type fakeFetcher struct {
	src string
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, version, targetPath string) error {
	if f.err != nil {
		return f.err
	}
	return copyTree(f.src, targetPath)
}

func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newTestPipeline(t *testing.T, f *fakeFetcher) (*Pipeline, *cache.Cache) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1700000000, 0))
	h := hasher.Default{}
	log := logrus.NewEntry(logrus.New())

	roots := map[cache.TierName]string{
		cache.Project: t.TempDir(),
		cache.User:    t.TempDir(),
		cache.Global:  t.TempDir(),
	}
	budgets := map[cache.TierName]cache.Budget{
		cache.Project: cache.DefaultBudget(1<<30, 1000),
		cache.User:    cache.DefaultBudget(1<<30, 1000),
		cache.Global:  cache.DefaultBudget(1<<30, 1000),
	}
	c := cache.New(roots, budgets, clk, h, log)

	ex := executor.New(executor.Config{Workers: 2, MaxConcurrentTasks: 2, AdjustmentInterval: time.Second}, clk, log)
	ex.Start()
	t.Cleanup(func() { ex.Shutdown(false) })

	return New(c, ex, f, h, log), c
}

func mustWriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Acquire on a cache miss submits a task that fetches and admits the
// package, per spec.md §2's fetch-then-admit flow.
func TestAcquire_MissFetchesAndAdmits(t *testing.T) {
	src := t.TempDir()
	mustWriteFile(t, src, "pkg.json", `{"name":"lib"}`)

	p, c := newTestPipeline(t, &fakeFetcher{src: src})

	id := p.Acquire("lib", "1.0", "https://example.invalid/lib.git")
	if id == 0 {
		t.Fatal("expected a non-zero task id for a cache miss")
	}
	status, err := p.Executor.Wait(context.Background(), id, 2*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != executor.Succeeded {
		t.Fatalf("status = %v, want Succeeded", status)
	}

	h, _, ok := c.Get("lib", "1.0")
	if !ok {
		t.Fatal("expected (lib, 1.0) to be cached after Acquire")
	}
	defer h.Release()

	if _, err := os.Stat(filepath.Join(h.Path(), "pkg.json")); err != nil {
		t.Fatalf("expected pkg.json in cached directory: %v", err)
	}
}

// Acquire on a cache hit returns 0 without submitting any task.
func TestAcquire_HitSkipsDispatch(t *testing.T) {
	src := t.TempDir()
	mustWriteFile(t, src, "pkg.json", `{}`)
	p, c := newTestPipeline(t, &fakeFetcher{src: src})

	if err := c.Admit("lib", "1.0", src); err != nil {
		t.Fatal(err)
	}

	if id := p.Acquire("lib", "1.0", "unused://"); id != 0 {
		t.Fatalf("Acquire returned %d on a cache hit, want 0", id)
	}
}

// S4-style scenario: a small change to an already-cached version is
// applied incrementally (patched in place) rather than a full replace,
// and the cache's size_bytes invariant is restored via Resync.
func TestAcquire_SmallChangeAppliesIncrementally(t *testing.T) {
	cachedSrc := t.TempDir()
	for i := 0; i < 20; i++ {
		mustWriteFile(t, cachedSrc, filepath.Base(cachedSrc)+string(rune('a'+i))+".txt", "unchanged content")
	}

	p, c := newTestPipeline(t, nil)
	if err := c.Admit("lib", "1.0", cachedSrc); err != nil {
		t.Fatal(err)
	}
	h, tier, _ := c.Get("lib", "1.0")
	cachedPath := h.Path()
	h.Release()

	// The fresh fetch differs by exactly one small file out of many:
	// well under the 10% changed-bytes incremental-apply threshold.
	candidateSrc := t.TempDir()
	if err := copyTree(cachedPath, candidateSrc); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, candidateSrc, "new-file.txt", "x")

	p.Fetcher = &fakeFetcher{src: candidateSrc}
	id := p.Acquire("lib", "1.0", "https://example.invalid/lib.git")
	status, err := p.Executor.Wait(context.Background(), id, 2*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != executor.Succeeded {
		t.Fatalf("status = %v, want Succeeded", status)
	}

	h2, tier2, ok := c.Get("lib", "1.0")
	if !ok {
		t.Fatal("expected (lib, 1.0) still cached")
	}
	defer h2.Release()
	if tier2 != tier {
		t.Fatalf("expected entry to remain in the same tier after incremental apply")
	}
	if _, err := os.Stat(filepath.Join(h2.Path(), "new-file.txt")); err != nil {
		t.Fatalf("expected new-file.txt to have been patched in: %v", err)
	}

	stats := c.Stats()[tier2]
	wantSize, err := dirSize(h2.Path())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSizeBytes != wantSize {
		t.Fatalf("TotalSizeBytes = %d after incremental apply, want %d (Resync invariant)", stats.TotalSizeBytes, wantSize)
	}
}

func dirSize(dir string) (int64, error) {
	var total int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}
