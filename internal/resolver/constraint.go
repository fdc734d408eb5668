package resolver

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Constraint is a predicate over version strings, produced by parsing
// one of the manifest grammar forms: "*", "X", "^X", "~X", ">=X",
// "<=X", ">X", "<X", "=X".
//
// Grounded on the teacher's gps.Constraint (constraints.go), trimmed to
// the smaller grammar this spec names and to a single concrete
// implementation backed by Masterminds/semver/v3, with a lexicographic
// fallback constraint for version strings that don't parse as semver.
type Constraint interface {
	// Matches reports whether version satisfies the constraint.
	Matches(version string) bool
	// Intersect returns the constraint admitting exactly the versions
	// both constraints admit. An empty intersection is not always
	// None(): two semver constraints combine into one that matches
	// nothing, and None() is returned only when the combination cannot
	// be expressed or a lexical pin is not admitted.
	Intersect(other Constraint) Constraint
	String() string
}

// Any matches every version.
type anyConstraint struct{}

func Any() Constraint { return anyConstraint{} }

func (anyConstraint) Matches(string) bool          { return true }
func (anyConstraint) Intersect(c Constraint) Constraint { return c }
func (anyConstraint) String() string               { return "*" }

// None matches nothing; it is the result of an unsatisfiable
// intersection.
type noneConstraint struct{}

func None() Constraint { return noneConstraint{} }

func (noneConstraint) Matches(string) bool              { return false }
func (noneConstraint) Intersect(Constraint) Constraint  { return noneConstraint{} }
func (noneConstraint) String() string                   { return "<none>" }

// semverC wraps a *semver.Constraints parsed from one of the supported
// constraint operators.
type semverC struct {
	raw string
	c   *semver.Constraints
}

// lexC is the fallback used when raw cannot be parsed as a semver
// constraint: a case-sensitive string comparison (ordering for >=, <=,
// >, <; prefix match for ^ and ~; equality otherwise), mirroring
// spec.md §3's "lexicographic fallback when semver parsing fails".
type lexC struct {
	op  string // "", "=", "^", "~", ">=", "<=", ">", "<"
	val string
}

// Parse turns one constraint-grammar string into a Constraint. It never
// errors: a string that fails semver parsing becomes a lexicographic
// constraint instead, per spec.md §3.
func Parse(raw string) Constraint {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return anyConstraint{}
	}

	semverExpr := toSemverExpr(raw)
	if c, err := semver.NewConstraint(semverExpr); err == nil {
		return semverC{raw: raw, c: c}
	}

	return parseLex(raw)
}

// toSemverExpr maps this spec's operator set onto the expression syntax
// Masterminds/semver/v3 accepts. The operators largely already coincide;
// "X" alone (no operator) means exact-match in this spec, which semver
// also accepts as an implicit "=".
func toSemverExpr(raw string) string {
	return raw
}

func parseLex(raw string) Constraint {
	for _, op := range []string{">=", "<=", "^", "~", "=", ">", "<"} {
		if strings.HasPrefix(raw, op) {
			return lexC{op: op, val: strings.TrimSpace(raw[len(op):])}
		}
	}
	return lexC{op: "=", val: raw}
}

func (c semverC) String() string { return c.raw }

func (c semverC) Matches(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		// The candidate version itself isn't semver; fall back to a
		// lexicographic comparison against the raw constraint body
		// under the same operator (see lexC), mirroring spec.md's
		// fallback.
		return parseLex(c.raw).Matches(version)
	}
	return c.c.Check(v)
}

func (c semverC) Intersect(other Constraint) Constraint {
	switch o := other.(type) {
	case anyConstraint:
		return c
	case noneConstraint:
		return o
	case semverC:
		combined := c.raw
		if o.raw != combined {
			combined = c.raw + ", " + o.raw
		}
		if merged, err := semver.NewConstraint(combined); err == nil {
			return semverC{raw: combined, c: merged}
		}
		return noneConstraint{}
	case lexC:
		// A semver constraint intersected with a lexical one: only
		// compatible if the lexical constraint is an exact pin that
		// the semver side also accepts.
		if o.op == "=" && c.Matches(o.val) {
			return o
		}
		return noneConstraint{}
	}
	return noneConstraint{}
}

func (c lexC) String() string { return c.op + c.val }

func (c lexC) Matches(version string) bool {
	switch c.op {
	case "=", "":
		return version == c.val
	case ">=":
		return version >= c.val
	case "<=":
		return version <= c.val
	case ">":
		return version > c.val
	case "<":
		return version < c.val
	case "^", "~":
		// Without a parseable semver, treat compatible-range operators
		// as a prefix match: "^1" matches "1", "1.2", "1.2.3-beta"...
		return strings.HasPrefix(version, c.val)
	}
	return false
}

func (c lexC) Intersect(other Constraint) Constraint {
	switch o := other.(type) {
	case anyConstraint:
		return c
	case noneConstraint:
		return o
	case lexC:
		if c.op == "=" && o.op == "=" {
			if c.val == o.val {
				return c
			}
			return noneConstraint{}
		}
		// Two range-like lexical constraints: we can't generally prove
		// a combined predicate over plain strings, so require that one
		// admits the other's pinned value (if any) and otherwise
		// conservatively keep the more specific (equality) one.
		if c.op == "=" && o.Matches(c.val) {
			return c
		}
		if o.op == "=" && c.Matches(o.val) {
			return o
		}
		return c
	case semverC:
		return o.Intersect(c)
	}
	return noneConstraint{}
}

// GreatestSatisfying picks the maximum version in versions that
// satisfies c. Ties among equal-preference candidates never occur for
// semver (total order); for the lexicographic fallback path the spec's
// tie-break is "lexicographic descending", which sort.Sort below
// already achieves since string comparison is total.
func GreatestSatisfying(c Constraint, versions []string) (string, bool) {
	var candidates []string
	for _, v := range versions {
		if c.Matches(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	if allSemver(candidates) {
		sort.Slice(candidates, func(i, j int) bool {
			vi, _ := semver.NewVersion(candidates[i])
			vj, _ := semver.NewVersion(candidates[j])
			return vi.LessThan(vj)
		})
	} else {
		sort.Strings(candidates)
	}
	return candidates[len(candidates)-1], true
}

func allSemver(versions []string) bool {
	for _, v := range versions {
		if _, err := semver.NewVersion(v); err != nil {
			return false
		}
	}
	return true
}
