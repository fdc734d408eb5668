package cache

import "github.com/armon/go-radix"

// pathIndex indexes cache entry keys by package name using a radix
// tree. The tier keeps it in step on every insert and remove, and
// keysWithPrefix finds every cached version of a package family in one
// prefix walk without scanning the whole entry table. Cache.Stats()
// does not read it.
//
// Grounded on the teacher's gps/verify/lock.go and gps/typed_radix.go,
// which use armon/go-radix the same way to index project roots by
// import-path prefix.
type pathIndex struct {
	tree *radix.Tree
}

func newPathIndex() *pathIndex {
	return &pathIndex{tree: radix.New()}
}

func (p *pathIndex) insert(pkg, key string) {
	var keys map[string]bool
	if v, ok := p.tree.Get(pkg); ok {
		keys = v.(map[string]bool)
	} else {
		keys = make(map[string]bool)
	}
	keys[key] = true
	p.tree.Insert(pkg, keys)
}

func (p *pathIndex) remove(pkg, key string) {
	v, ok := p.tree.Get(pkg)
	if !ok {
		return
	}
	keys := v.(map[string]bool)
	delete(keys, key)
	if len(keys) == 0 {
		p.tree.Delete(pkg)
	} else {
		p.tree.Insert(pkg, keys)
	}
}

// keysWithPrefix returns every cache key whose package name starts
// with prefix.
func (p *pathIndex) keysWithPrefix(prefix string) []string {
	var out []string
	p.tree.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		for k := range v.(map[string]bool) {
			out = append(out, k)
		}
		return false
	})
	return out
}
