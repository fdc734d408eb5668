package warmup

import (
	"context"
	"testing"
)

func TestScore_EssentialAndSizeClamp(t *testing.T) {
	r := Record{AccessFrequency: 10, Essential: true, EstimatedSize: 0}
	got := Score(r)
	want := 0.4*10 + 10 + 1000.0/1
	if got != want {
		t.Fatalf("Score() = %v, want %v", got, want)
	}
}

func TestEngine_ImmediateDrainsHighestPriorityFirst(t *testing.T) {
	var order []string
	e := New(func(ctx context.Context, r Record) error {
		order = append(order, r.Package)
		return nil
	}, DefaultResourceGuard(), nil)

	e.Register(Record{Package: "low-pkg", Priority: Low})
	e.Register(Record{Package: "critical-pkg", Priority: Critical})
	e.Register(Record{Package: "normal-pkg", Priority: Normal})

	e.Start(context.Background(), Immediate)

	if len(order) != 3 || order[0] != "critical-pkg" || order[2] != "low-pkg" {
		t.Fatalf("unexpected preload order: %v", order)
	}
}

func TestEngine_ResourceGuardSkipsOversizeRecords(t *testing.T) {
	var ran int
	e := New(func(ctx context.Context, r Record) error {
		ran++
		return nil
	}, ResourceGuard{MaxPreloadSize: 100, MaxConcurrentPreloads: 1}, nil)

	e.Register(Record{Package: "too-big", Priority: Critical, EstimatedSize: 1000})
	e.Start(context.Background(), Immediate)

	if ran != 0 {
		t.Fatalf("expected oversize record to be skipped, ran=%d", ran)
	}
	if stats := e.Statistics(); stats.Skipped != 1 {
		t.Fatalf("expected Skipped=1, got %+v", stats)
	}
}

func TestEngine_UnregisterAllVersions(t *testing.T) {
	e := New(func(ctx context.Context, r Record) error { return nil }, DefaultResourceGuard(), nil)
	e.Register(Record{Package: "pkg", Version: "1.0.0"})
	e.Register(Record{Package: "pkg", Version: "2.0.0"})
	e.Unregister("pkg", "")

	if got := len(e.ordered()); got != 0 {
		t.Fatalf("expected 0 records after unregistering all versions, got %d", got)
	}
}
