package cache

import (
	"path/filepath"
	"testing"
)

func TestBoltIndex_SaveAndLoadTierRoundTrip(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	if err := tier.Admit("lib", "1.0", mkPopulatedDir(t, 50)); err != nil {
		t.Fatal(err)
	}

	boltPath := filepath.Join(t.TempDir(), "cache.bolt")
	idx, err := OpenBoltIndex(boltPath)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if err := idx.SaveTier(tier); err != nil {
		t.Fatal(err)
	}

	reloaded, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	reloaded.Name = tier.Name
	if err := idx.LoadTier(reloaded); err != nil {
		t.Fatal(err)
	}

	e, ok := reloaded.entries[entryKey("lib", "1.0")]
	if !ok {
		t.Fatal("expected entry restored from bolt index")
	}
	if e.SizeBytes != 50 {
		t.Errorf("SizeBytes = %d, want 50", e.SizeBytes)
	}
}

func TestBoltIndex_SaveTierReplacesPriorContents(t *testing.T) {
	tier, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	boltPath := filepath.Join(t.TempDir(), "cache.bolt")
	idx, err := OpenBoltIndex(boltPath)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if err := tier.Admit("first", "1.0", mkPopulatedDir(t, 10)); err != nil {
		t.Fatal(err)
	}
	if err := idx.SaveTier(tier); err != nil {
		t.Fatal(err)
	}

	tier.Remove("first", "1.0", true)
	if err := tier.Admit("second", "1.0", mkPopulatedDir(t, 10)); err != nil {
		t.Fatal(err)
	}
	if err := idx.SaveTier(tier); err != nil {
		t.Fatal(err)
	}

	reloaded, _ := newTestTier(t, DefaultBudget(1<<20, 10))
	reloaded.Name = tier.Name
	if err := idx.LoadTier(reloaded); err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.entries[entryKey("first", "1.0")]; ok {
		t.Error("expected stale entry removed by the second SaveTier")
	}
	if _, ok := reloaded.entries[entryKey("second", "1.0")]; !ok {
		t.Error("expected current entry present after the second SaveTier")
	}
}
