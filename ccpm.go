// Package ccpm is the module root: it exposes the component handles
// (Resolver, Cache, ParseCache, Executor, Warmup, and the Acquire
// pipeline, which drives the incremental updater) wired together
// behind one constructor, plus the
// simple value types callers pass between them. It takes no CLI, no
// environment variables, and holds no process-level singleton beyond
// the Core value itself, which embedders own.
//
// Grounded on the teacher's context.go Ctx (the single struct an
// embedding `dep` command builds once and threads through every
// operation), generalized from "one VCS-backed project" to "five
// independently-testable components sharing Hasher/Clock".
package ccpm

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccpm-project/ccpm/internal/acquire"
	"github.com/ccpm-project/ccpm/internal/cache"
	"github.com/ccpm-project/ccpm/internal/ccpmlog"
	"github.com/ccpm-project/ccpm/internal/clock"
	"github.com/ccpm-project/ccpm/internal/config"
	"github.com/ccpm-project/ccpm/internal/executor"
	"github.com/ccpm-project/ccpm/internal/fetcher"
	"github.com/ccpm-project/ccpm/internal/hasher"
	"github.com/ccpm-project/ccpm/internal/parsecache"
	"github.com/ccpm-project/ccpm/internal/resolver"
	"github.com/ccpm-project/ccpm/internal/warmup"
)

// Core bundles the component handles exposed to callers. Every field is safe for concurrent use independently; Core
// itself adds no further locking.
type Core struct {
	Resolver   *resolver.Resolver
	Cache      *cache.Cache
	ParseCache *parsecache.Cache
	Executor   *executor.Executor
	Warmup     *warmup.Engine
	Acquire    *acquire.Pipeline

	Clock  clock.Clock
	Hasher hasher.Hasher
	Log    *logrus.Logger
}

// Dependencies collects the external collaborators a Core needs:
// spec.md §6's ManifestReader and Fetcher, plus the Preloader the
// Warmup Engine drives preloads through (itself typically backed by a
// Fetcher and the Cache). Fetch defaults to fetcher.GitFetcher if nil,
// since the module must be runnable end-to-end without a
// separately-maintained transport project.
type Dependencies struct {
	Reader  resolver.ManifestReader
	Fetch   fetcher.Fetcher
	Preload warmup.Preloader
	Mode    resolver.Mode
}

func noopPreload(ctx context.Context, r warmup.Record) error { return nil }

// New wires a Core from cfg and the embedder-supplied collaborators.
// Dependency order follows spec.md §2: Hasher and Clock are leaves;
// Cache depends on both; the Executor and Warmup engine are
// independent peers; the Resolver depends only on Clock and the
// caller's ManifestReader.
func New(cfg config.Config, deps Dependencies, out io.Writer) *Core {
	log := ccpmlog.New(out, false)

	clk := clock.System{}
	h := hasher.Default{}

	roots := map[cache.TierName]string{
		cache.Project: cfg.Project.Root,
		cache.User:    cfg.User.Root,
		cache.Global:  cfg.Global.Root,
	}
	budgets := map[cache.TierName]cache.Budget{
		cache.Project: cache.DefaultBudget(cfg.Project.MaxSizeBytes, cfg.Project.MaxItems),
		cache.User:    cache.DefaultBudget(cfg.User.MaxSizeBytes, cfg.User.MaxItems),
		cache.Global:  cache.DefaultBudget(cfg.Global.MaxSizeBytes, cfg.Global.MaxItems),
	}
	c := cache.New(roots, budgets, clk, h, ccpmlog.Component(log, "cache"))

	workers := cfg.Executor.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	adjustInterval := time.Duration(cfg.Executor.AdjustmentIntervalSec) * time.Second
	if adjustInterval <= 0 {
		adjustInterval = time.Second
	}
	execCfg := executor.Config{
		Workers:            workers,
		MaxConcurrentTasks: cfg.Executor.MaxConcurrentTasks,
		AdjustmentInterval: adjustInterval,
	}
	ex := executor.New(execCfg, clk, ccpmlog.Component(log, "executor"))
	ex.Start()

	preload := deps.Preload
	if preload == nil {
		preload = noopPreload
	}
	guard := warmup.ResourceGuard{
		MaxPreloadSize:        cfg.Warmup.MaxPreloadSizeBytes,
		MaxConcurrentPreloads: cfg.Warmup.MaxConcurrentPreloads,
	}
	w := warmup.New(preload, guard, ccpmlog.Component(log, "warmup"))

	res := resolver.New(deps.Reader, clk, ccpmlog.Component(log, "resolver"))
	res.Mode = deps.Mode

	pc := parsecache.New(clk)

	fetch := deps.Fetch
	if fetch == nil {
		fetch = fetcher.GitFetcher{}
	}
	acq := acquire.New(c, ex, fetch, h, ccpmlog.Component(log, "acquire"))

	return &Core{
		Resolver:   res,
		Cache:      c,
		ParseCache: pc,
		Executor:   ex,
		Warmup:     w,
		Acquire:    acq,
		Clock:      clk,
		Hasher:     h,
		Log:        log,
	}
}

// Shutdown stops the Executor and Warmup Engine's background workers
// and runs a final cache eviction pass.
func (core *Core) Shutdown(graceful bool) {
	core.Warmup.Stop()
	core.Executor.Shutdown(graceful)
	core.Cache.Cleanup()
}
