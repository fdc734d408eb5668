package cache

import "testing"

func TestLRUIndex_TouchMovesToFront(t *testing.T) {
	idx := newLRUIndex()
	idx.touch("a")
	idx.touch("b")
	idx.touch("c")

	if got := idx.order.Front().Value.(string); got != "c" {
		t.Fatalf("expected c at head, got %q", got)
	}

	idx.touch("a")
	if got := idx.order.Front().Value.(string); got != "a" {
		t.Fatalf("expected a at head after re-touch, got %q", got)
	}
	if got := idx.order.Back().Value.(string); got != "b" {
		t.Fatalf("expected b at tail, got %q", got)
	}
}

func TestLRUIndex_RemoveKeepsKeySetsIdentical(t *testing.T) {
	idx := newLRUIndex()
	for _, k := range []string{"a", "b", "c"} {
		idx.touch(k)
	}
	idx.remove("b")

	if idx.len() != 2 {
		t.Fatalf("expected len 2 after remove, got %d", idx.len())
	}
	if _, ok := idx.elements["b"]; ok {
		t.Fatal("expected b removed from element map")
	}
	if idx.position("b") != -1 {
		t.Fatal("expected position -1 for removed key")
	}

	// keys(elements) == keys in the list, per the invariant in lru.go's
	// doc comment.
	seen := map[string]bool{}
	for e := idx.order.Front(); e != nil; e = e.Next() {
		seen[e.Value.(string)] = true
	}
	if len(seen) != len(idx.elements) {
		t.Fatalf("list/map key sets diverged: list=%v map=%v", seen, idx.elements)
	}
	for k := range seen {
		if _, ok := idx.elements[k]; !ok {
			t.Fatalf("key %q in list but not in element map", k)
		}
	}
}

func TestLRUIndex_TailToHeadOrder(t *testing.T) {
	idx := newLRUIndex()
	for _, k := range []string{"a", "b", "c"} {
		idx.touch(k)
	}
	// head is c, tail is a; tailToHead should yield a, b, c.
	got := idx.tailToHead()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("tailToHead length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tailToHead = %v, want %v", got, want)
		}
	}
}

func TestLRUIndex_RemoveAbsentIsNoop(t *testing.T) {
	idx := newLRUIndex()
	idx.touch("a")
	idx.remove("ghost")
	if idx.len() != 1 {
		t.Fatalf("expected len 1, got %d", idx.len())
	}
}
