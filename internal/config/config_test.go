package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccpm.toml")

	contents := `
[executor]
max_concurrent_tasks = 8

[warmup]
popular_packages = ["boost", "fmt"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Executor.MaxConcurrentTasks != 8 {
		t.Fatalf("expected override to 8, got %d", cfg.Executor.MaxConcurrentTasks)
	}
	if cfg.Parse.MaxEntries != 1000 {
		t.Fatalf("expected default parse cache max entries to survive, got %d", cfg.Parse.MaxEntries)
	}
	if len(cfg.Warmup.PopularPackages) != 2 {
		t.Fatalf("expected 2 popular packages, got %v", cfg.Warmup.PopularPackages)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccpm.toml")

	want := Default()
	want.Executor.Workers = 6
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Executor.Workers != 6 {
		t.Fatalf("round trip lost Executor.Workers: got %d", got.Executor.Workers)
	}
}

func TestLoad_MissingFileReturnsDefaultsAndError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	if cfg.Executor.AdjustmentIntervalSec != Default().Executor.AdjustmentIntervalSec {
		t.Fatal("expected Load to still return Default()-seeded config alongside the error")
	}
}
