package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccpm-project/ccpm/internal/clock"
	"github.com/ccpm-project/ccpm/internal/hasher"
)

func newTestTier(t *testing.T, budget Budget) (*Tier, *clock.Manual) {
	t.Helper()
	root := t.TempDir()
	clk := clock.NewManual(time.Unix(1700000000, 0))
	log := logrus.NewEntry(logrus.New())
	return NewTier("user", root, budget, clk, hasher.Default{}, log), clk
}

func mkPopulatedDir(t *testing.T, sizeBytes int) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "payload.bin"), make([]byte, sizeBytes), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// S1 — cache hit: access_count increments, key moves to LRU head, hit
// counter increments.
func TestTier_GetHit(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	src := mkPopulatedDir(t, 100)
	if err := tier.Admit("lib", "1.0", src); err != nil {
		t.Fatal(err)
	}

	h, ok := tier.Get("lib", "1.0")
	if !ok {
		t.Fatal("expected hit")
	}
	defer h.Release()

	tier.mu.Lock()
	e := tier.entries[entryKey("lib", "1.0")]
	ac := e.AccessCount
	stats := tier.stats
	tier.mu.Unlock()

	if ac != 1 {
		t.Errorf("access_count = %d, want 1", ac)
	}
	if stats.HitCount != 1 {
		t.Errorf("hit_count = %d, want 1", stats.HitCount)
	}
	if tier.lru.order.Front().Value.(string) != entryKey("lib", "1.0") {
		t.Errorf("expected key at LRU head")
	}
}

// S2 — cache admission triggers eviction: the LRU-tail entry is
// evicted first, and only as much as is needed to clear the budget.
func TestTier_AdmitTriggersEviction(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(1000, 0))
	tier.Budget.Policy = PolicyLRU

	mustAdmit := func(pkg string, size int) {
		if err := tier.Admit(pkg, "1", mkPopulatedDir(t, size)); err != nil {
			t.Fatalf("admit %s: %v", pkg, err)
		}
	}

	mustAdmit("A", 400) // oldest, becomes LRU tail
	mustAdmit("B", 400)
	mustAdmit("C", 100) // most recent before "new"

	if err := tier.Admit("new", "1", mkPopulatedDir(t, 300)); err != nil {
		t.Fatalf("admit new: %v", err)
	}

	tier.mu.Lock()
	defer tier.mu.Unlock()

	if _, ok := tier.entries[entryKey("A", "1")]; ok {
		t.Error("expected A to be evicted (LRU tail)")
	}
	if _, ok := tier.entries[entryKey("B", "1")]; !ok {
		t.Error("expected B to survive")
	}
	if tier.totalSize != 800 {
		t.Errorf("total size = %d, want 800", tier.totalSize)
	}
	if tier.lru.order.Front().Value.(string) != entryKey("new", "1") {
		t.Error("expected new entry at LRU head")
	}
}

// Boundary: a single entry larger than max_size is rejected outright,
// with cache state unchanged.
func TestTier_AdmitOversizeRejected(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(100, 10))
	err := tier.Admit("huge", "1", mkPopulatedDir(t, 500))
	if _, ok := err.(*DiskFull); !ok {
		t.Fatalf("expected DiskFull, got %v", err)
	}
	tier.mu.Lock()
	defer tier.mu.Unlock()
	if len(tier.entries) != 0 {
		t.Error("expected no entries admitted")
	}
}

// Pinned entries survive eviction, regardless of policy.
func TestTier_PinnedSurvivesEviction(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(500, 0))
	if err := tier.Admit("keep", "1", mkPopulatedDir(t, 400)); err != nil {
		t.Fatal(err)
	}
	tier.Pin("keep", "1", true)

	if err := tier.Admit("other", "1", mkPopulatedDir(t, 400)); err != nil {
		t.Fatal(err)
	}

	tier.mu.Lock()
	defer tier.mu.Unlock()
	if _, ok := tier.entries[entryKey("keep", "1")]; !ok {
		t.Error("pinned entry was evicted")
	}
}

func TestTier_RemoveMissingOrPinnedFailsSilently(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	if tier.Remove("ghost", "1", false) {
		t.Error("expected false removing a missing entry")
	}

	if err := tier.Admit("keep", "1", mkPopulatedDir(t, 10)); err != nil {
		t.Fatal(err)
	}
	tier.Pin("keep", "1", true)
	if tier.Remove("keep", "1", false) {
		t.Error("expected false removing a pinned entry without force")
	}
	if !tier.Remove("keep", "1", true) {
		t.Error("expected forced removal to succeed")
	}
}

func TestTier_SaveLoadRoundTrip(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	if err := tier.Admit("lib", "1.0", mkPopulatedDir(t, 50)); err != nil {
		t.Fatal(err)
	}
	if err := tier.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	reloaded.Root = tier.Root
	if _, err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}

	if _, ok := reloaded.entries[entryKey("lib", "1.0")]; !ok {
		t.Error("expected reloaded entry")
	}
}
