package cache

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccpm-project/ccpm/internal/clock"
	"github.com/ccpm-project/ccpm/internal/hasher"
)

// TierName enumerates the three cache tiers, consulted in this order
// on lookup per spec.md §4.2 "Tier semantics".
type TierName int

const (
	Project TierName = iota
	User
	Global
)

func (t TierName) String() string {
	switch t {
	case Project:
		return "project"
	case User:
		return "user"
	case Global:
		return "global"
	}
	return "unknown"
}

// Cache composes the three tiers behind the unified API spec.md §4.2
// describes. Admissions default to the user tier; the global tier is
// only populated explicitly (administrator action or essential
// warmup), and the project tier holds only links into user/global
// entries, never independent copies.
type Cache struct {
	tiers map[TierName]*Tier
	log   *logrus.Entry
}

// New constructs a Cache with the three tiers rooted under the given
// directories, each governed by its own Budget.
func New(roots map[TierName]string, budgets map[TierName]Budget, clk clock.Clock, h hasher.Hasher, log *logrus.Entry) *Cache {
	c := &Cache{tiers: make(map[TierName]*Tier), log: log}
	for _, name := range []TierName{Project, User, Global} {
		c.tiers[name] = NewTier(name.String(), roots[name], budgets[name], clk, h, log)
	}
	return c
}

// Tier returns the underlying single-tier store, for callers (like the
// persistence and warmup code) that need tier-specific operations.
func (c *Cache) Tier(name TierName) *Tier {
	return c.tiers[name]
}

// Get consults tiers in order (project, user, global) and returns the
// first hit.
func (c *Cache) Get(pkg, version string) (*Handle, TierName, bool) {
	for _, name := range []TierName{Project, User, Global} {
		if h, ok := c.tiers[name].Get(pkg, version); ok {
			return h, name, true
		}
	}
	return nil, 0, false
}

// Admit inserts a populated directory into the user tier by default,
// running eviction if the tier goes over budget.
func (c *Cache) Admit(pkg, version, populatedDir string) error {
	return c.tiers[User].Admit(pkg, version, populatedDir)
}

// AdmitToTier inserts directly into a specific tier (e.g. Global for
// administrator/warmup-essential population).
func (c *Cache) AdmitToTier(tier TierName, pkg, version, populatedDir string) error {
	return c.tiers[tier].Admit(pkg, version, populatedDir)
}

// LinkProject materializes the project tier's view of (pkg, version) as
// a link into whichever higher tier already holds it, per spec.md
// §4.2: "Project tier holds hard or symbolic links into user/global
// entries, never independent copies." Hard links are preferred, per
// Design Notes §9, falling back to symlinks across filesystems.
func (c *Cache) LinkProject(pkg, version, projectDir string) error {
	h, tier, ok := c.Get(pkg, version)
	if !ok {
		return errors.Errorf("cache: cannot link %s:%s into project tree: not cached in user or global tier", pkg, version)
	}
	defer h.Release()
	if tier == Project {
		return errors.Errorf("cache: cannot link project tier into itself")
	}
	return linkDirectory(h.Path(), projectDir)
}

// Resync recomputes size_bytes for an entry in a specific tier after its
// directory was patched in place, per spec.md §4.3's incremental-apply
// path.
func (c *Cache) Resync(tier TierName, pkg, version string) error {
	return c.tiers[tier].Resync(pkg, version)
}

// Pin toggles an entry's eviction exemption in a specific tier.
func (c *Cache) Pin(tier TierName, pkg, version string, pinned bool) {
	c.tiers[tier].Pin(pkg, version, pinned)
}

// Remove explicitly removes an entry from a specific tier.
func (c *Cache) Remove(tier TierName, pkg, version string, force bool) bool {
	return c.tiers[tier].Remove(pkg, version, force)
}

// Cleanup runs eviction on every tier to bring it below its soft
// thresholds.
func (c *Cache) Cleanup() {
	for _, t := range c.tiers {
		t.Cleanup()
	}
}

// Stats returns a snapshot per tier.
func (c *Cache) Stats() map[TierName]Statistics {
	out := make(map[TierName]Statistics, len(c.tiers))
	for name, t := range c.tiers {
		out[name] = t.Stats()
	}
	return out
}

// IndexPath is the conventional on-disk location of a tier's
// persisted index file, per spec.md §6's cache index file format.
func IndexPath(tierRoot string) string {
	return filepath.Join(tierRoot, "cache_index.json")
}
