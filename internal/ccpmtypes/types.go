// Package ccpmtypes holds value types shared across the cache,
// resolver, executor and warmup packages so that none of them need to
// import one another just to pass a package identity around.
package ccpmtypes

import "fmt"

// LatestVersion is the sentinel accepted in place of a concrete
// tag/commit wherever a version string is expected.
const LatestVersion = "latest"

// PackageId identifies a single resolvable unit: a package name paired
// with a concrete version (or the LatestVersion sentinel).
type PackageId struct {
	Name    string
	Version string
}

// Key returns the canonical "name:version" cache/graph key for this
// identity.
func (p PackageId) Key() string {
	return fmt.Sprintf("%s:%s", p.Name, p.Version)
}

func (p PackageId) String() string {
	return p.Key()
}

// ParsePackageKey splits a "name:version" key back into a PackageId.
// Names never contain colons, but the version component may (e.g.
// "git:abcdef"), so splitting is done on the first colon only.
func ParsePackageKey(key string) (PackageId, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return PackageId{Name: key[:i], Version: key[i+1:]}, true
		}
	}
	return PackageId{}, false
}
