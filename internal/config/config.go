// Package config loads ccpm.toml, the embedder-facing configuration
// file for cache budgets, executor concurrency, and warmup priorities.
//
// Grounded on the teacher's Gopkg.toml handling (manifest.go's
// TOML-backed project manifest), generalized from "declared
// dependencies" to "runtime tunables for the five components", using
// the same pelletier/go-toml library the teacher depends on for its
// own manifest format.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// CacheConfig configures one cache tier's budget, per spec.md §4.2.
type CacheConfig struct {
	Root           string `toml:"root"`
	MaxSizeBytes   int64  `toml:"max_size_bytes"`
	MaxItems       int    `toml:"max_items"`
	MinKeepItems   int    `toml:"min_keep_items"`
	EvictionPolicy string `toml:"eviction_policy"`
}

// ExecutorConfig configures the Parallel Executor, per spec.md §4.4.
type ExecutorConfig struct {
	Workers               int `toml:"workers"`
	MaxConcurrentTasks    int `toml:"max_concurrent_tasks"`
	AdjustmentIntervalSec int `toml:"adjustment_interval_seconds"`
}

// WarmupConfig configures the Warmup Engine, per spec.md §4.5.
type WarmupConfig struct {
	MaxPreloadSizeBytes   int64    `toml:"max_preload_size_bytes"`
	MaxConcurrentPreloads int      `toml:"max_concurrent_preloads"`
	Strategy              string   `toml:"strategy"`
	PopularPackages       []string `toml:"popular_packages"`
}

// ParseCacheConfig configures the parse cache, per spec.md §4.3.
type ParseCacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
	MaxEntries int `toml:"max_entries"`
}

// Config is the root of ccpm.toml.
type Config struct {
	Project CacheConfig      `toml:"project_cache"`
	User    CacheConfig      `toml:"user_cache"`
	Global  CacheConfig      `toml:"global_cache"`
	Executor ExecutorConfig  `toml:"executor"`
	Warmup  WarmupConfig     `toml:"warmup"`
	Parse   ParseCacheConfig `toml:"parse_cache"`
}

// Default returns the configuration implied by every component's own
// spec-mandated defaults, for use when no ccpm.toml is present.
func Default() Config {
	return Config{
		Project: CacheConfig{EvictionPolicy: "hybrid", MinKeepItems: 1},
		User:    CacheConfig{EvictionPolicy: "hybrid", MinKeepItems: 1},
		Global:  CacheConfig{EvictionPolicy: "hybrid", MinKeepItems: 1},
		Executor: ExecutorConfig{
			MaxConcurrentTasks:    4,
			AdjustmentIntervalSec: 1,
		},
		Warmup: WarmupConfig{
			MaxPreloadSizeBytes:   1 << 30,
			MaxConcurrentPreloads: 4,
			Strategy:              "async",
		},
		Parse: ParseCacheConfig{
			TTLSeconds: 24 * 60 * 60,
			MaxEntries: 1000,
		},
	}
}

// Load reads and parses path, starting from Default() so a partial
// ccpm.toml only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: reading %q", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %q", path)
	}
	return cfg, nil
}

// Save writes cfg to path in TOML form.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "config: marshaling")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "config: writing %q", path)
	}
	return nil
}
