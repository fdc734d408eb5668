package cache

import "container/list"

// lruIndex is a doubly-linked list of keys plus an auxiliary map from
// key to list element, giving O(1) move-to-front. The head is
// most-recently-used, per spec.md §3's "LRU index" invariant.
//
// Invariant enforced by construction: keys(index) == keys(elements).
type lruIndex struct {
	order    *list.List
	elements map[string]*list.Element
}

func newLRUIndex() *lruIndex {
	return &lruIndex{
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

// touch moves key to the head of the list, inserting it if absent.
func (l *lruIndex) touch(key string) {
	if e, ok := l.elements[key]; ok {
		l.order.MoveToFront(e)
		return
	}
	l.elements[key] = l.order.PushFront(key)
}

// remove drops key from the index. A no-op if key is absent.
func (l *lruIndex) remove(key string) {
	if e, ok := l.elements[key]; ok {
		l.order.Remove(e)
		delete(l.elements, key)
	}
}

// tailToHead returns keys ordered from least- to most-recently-used,
// i.e. eviction-candidate order for the LRU policy.
func (l *lruIndex) tailToHead() []string {
	keys := make([]string, 0, l.order.Len())
	for e := l.order.Back(); e != nil; e = e.Prev() {
		keys = append(keys, e.Value.(string))
	}
	return keys
}

// position returns a key's 0-based distance from the head (0 = most
// recently used), used to break hybrid-eviction score ties per spec.md
// §8 ("Hybrid eviction ties ... break by LRU position").
func (l *lruIndex) position(key string) int {
	pos := 0
	for e := l.order.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == key {
			return pos
		}
		pos++
	}
	return -1
}

func (l *lruIndex) len() int {
	return l.order.Len()
}
