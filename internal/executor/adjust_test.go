package executor

import (
	"testing"
	"time"

	"github.com/ccpm-project/ccpm/internal/clock"
)

func TestAdjustTarget_HighLoadShrinksTarget(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	e := New(Config{Workers: 10, MaxConcurrentTasks: 4, AdjustmentInterval: time.Second}, clk, nil)

	got := e.AdjustTarget(NewSample(0.9, 0.9, 0.9, 0))
	if got != 8 { // floor(10 * 0.8)
		t.Fatalf("expected target 8 under high load, got %d", got)
	}
}

func TestAdjustTarget_LowLoadGrowsTarget(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	e := New(Config{Workers: 10, MaxConcurrentTasks: 4, AdjustmentInterval: time.Second}, clk, nil)
	e.target = 5

	got := e.AdjustTarget(NewSample(0.1, 0.1, 0.1, 0))
	if got != 6 { // floor(5 * 1.2)
		t.Fatalf("expected target 6 under low load, got %d", got)
	}
}

func TestAdjustTarget_LowLoadNeverExceedsWorkerCount(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	e := New(Config{Workers: 4, MaxConcurrentTasks: 4, AdjustmentInterval: time.Second}, clk, nil)
	e.target = 4

	got := e.AdjustTarget(NewSample(0.1, 0.1, 0.1, 0))
	if got > 4 {
		t.Fatalf("target must never exceed Workers, got %d", got)
	}
}

// Adjustments are rate-limited to at most once per AdjustmentInterval.
func TestAdjustTarget_RateLimitedByInterval(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	e := New(Config{Workers: 10, MaxConcurrentTasks: 4, AdjustmentInterval: time.Second}, clk, nil)
	e.target = 5

	first := e.AdjustTarget(NewSample(0.1, 0.1, 0.1, 0))
	if first != 6 { // floor(5 * 1.2)
		t.Fatalf("expected first adjustment to 6, got %d", first)
	}

	// Immediately sample low load again; without the rate limit the
	// target would grow to 7, but no time has passed, so it must not move.
	second := e.AdjustTarget(NewSample(0.1, 0.1, 0.1, 0))
	if second != 6 {
		t.Fatalf("expected target unchanged within the same adjustment interval, got %d", second)
	}

	clk.Advance(2 * time.Second)
	third := e.AdjustTarget(NewSample(0.1, 0.1, 0.1, 0))
	if third <= 6 {
		t.Fatalf("expected target to grow once the interval elapses, got %d", third)
	}
}
