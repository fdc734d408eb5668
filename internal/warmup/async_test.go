package warmup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ccpm-project/ccpm/internal/cache"
	"github.com/ccpm-project/ccpm/internal/resolver"
)

func TestEngine_AsyncCompletesAllRecords(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	e := New(func(ctx context.Context, r Record) error {
		mu.Lock()
		ran = append(ran, r.Package)
		mu.Unlock()
		return nil
	}, DefaultResourceGuard(), nil)

	for i := 0; i < 5; i++ {
		e.Register(Record{Package: "pkg", Version: string(rune('a' + i)), Priority: Normal})
	}

	e.Start(context.Background(), Async)
	// Stop halts workers between records, so let the pass finish first.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if current, _, _ := e.Progress(); current == 5 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	e.Stop()

	mu.Lock()
	got := len(ran)
	mu.Unlock()
	if got != 5 {
		t.Fatalf("expected all 5 records preloaded, got %d", got)
	}

	if _, total, pct := e.Progress(); total != 5 || pct != 100 {
		t.Fatalf("expected progress 5/5 (100%%), got total=%d pct=%v", total, pct)
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e := New(func(ctx context.Context, r Record) error { return nil }, DefaultResourceGuard(), nil)
	e.Register(Record{Package: "pkg", Priority: Normal})
	e.Start(context.Background(), Async)
	e.Stop()

	done := make(chan struct{})
	go func() {
		e.Stop() // must not panic or block forever
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Stop() call did not return")
	}
}

func TestEngine_OpportunisticPreloadSkipsOnHit(t *testing.T) {
	var attempted bool
	e := New(func(ctx context.Context, r Record) error {
		attempted = true
		return nil
	}, DefaultResourceGuard(), nil)
	e.Register(Record{Package: "lib", Version: "1.0", Priority: Critical})

	e.OpportunisticPreload(context.Background(), hitCache{}, "lib", "1.0")
	if attempted {
		t.Fatal("expected no preload attempt on a cache hit")
	}
}

func TestEngine_OpportunisticPreloadRunsOnMiss(t *testing.T) {
	var attempted bool
	e := New(func(ctx context.Context, r Record) error {
		attempted = true
		return nil
	}, DefaultResourceGuard(), nil)
	e.Register(Record{Package: "lib", Version: "1.0", Priority: Critical})

	e.OpportunisticPreload(context.Background(), missCache{}, "lib", "1.0")
	if !attempted {
		t.Fatal("expected a preload attempt on a cache miss with a matching record")
	}
}

func TestEngine_SmartPreloadDedupesAcrossGroups(t *testing.T) {
	e := New(func(ctx context.Context, r Record) error { return nil }, DefaultResourceGuard(), nil)
	e.Register(Record{Package: "already-registered", Priority: Low})

	direct := []resolver.Declared{{Name: "already-registered"}, {Name: "fresh-direct"}}
	popular := []Record{{Package: "fresh-direct", Version: ""}, {Package: "fresh-popular"}}
	essential := []Record{{Package: "fresh-essential"}}

	e.SmartPreload(direct, popular, essential)

	records := e.ordered()
	byPkg := map[string]*Record{}
	for _, r := range records {
		byPkg[r.Package] = r
	}

	if byPkg["already-registered"].Priority != Low {
		t.Error("pre-existing record's priority should not be overwritten by SmartPreload")
	}
	if byPkg["fresh-direct"] == nil || byPkg["fresh-direct"].Priority != Critical {
		t.Error("expected fresh-direct registered at Critical priority")
	}
	// fresh-direct was already claimed by the direct-deps pass, so the
	// popular pass's entry for the same key must be skipped.
	if byPkg["fresh-popular"] == nil || byPkg["fresh-popular"].Priority != High {
		t.Error("expected fresh-popular registered at High priority")
	}
	if byPkg["fresh-essential"] == nil || byPkg["fresh-essential"].Priority != Normal || !byPkg["fresh-essential"].Essential {
		t.Error("expected fresh-essential registered at Normal priority and marked essential")
	}
}

type hitCache struct{}

func (hitCache) Get(pkg, version string) (*cache.Handle, cache.TierName, bool) {
	return nil, cache.Project, true
}

type missCache struct{}

func (missCache) Get(pkg, version string) (*cache.Handle, cache.TierName, bool) {
	return nil, cache.Project, false
}
