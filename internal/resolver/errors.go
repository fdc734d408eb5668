package resolver

import (
	"fmt"
	"strings"
)

// ResolveError is implemented by every structured failure the resolver
// can return, per spec.md §4.1's "Failure model".
type ResolveError interface {
	error
	resolveError()
}

// ManifestNotFound is returned when the ManifestReader has nothing for
// a package name.
type ManifestNotFound struct {
	Package string
}

func (e *ManifestNotFound) Error() string {
	return fmt.Sprintf("no manifest found for package %q", e.Package)
}
func (*ManifestNotFound) resolveError() {}

// VersionNotFound is returned when no available version of a package
// satisfies the constraint requested of it.
type VersionNotFound struct {
	Package    string
	Constraint string
}

func (e *VersionNotFound) Error() string {
	return fmt.Sprintf("no version of %q satisfies constraint %q", e.Package, e.Constraint)
}
func (*VersionNotFound) resolveError() {}

// RequiredBy is one parent's declared constraint on a conflicted
// package, as rendered in a VersionConflict report.
type RequiredBy struct {
	Parent     string
	Constraint string
}

// VersionConflict is emitted when a node's chosen version fails the
// intersection of the constraints its parents place on it.
type VersionConflict struct {
	Package       string
	RequiredBy    []RequiredBy
	ChosenVersion string
}

func (e *VersionConflict) Error() string {
	var parts []string
	for _, rb := range e.RequiredBy {
		parts = append(parts, fmt.Sprintf("%s requires %s", rb.Parent, rb.Constraint))
	}
	return fmt.Sprintf("version conflict for %q (chose %s): %s", e.Package, e.ChosenVersion, strings.Join(parts, "; "))
}
func (*VersionConflict) resolveError() {}

// CyclicDependency is emitted when the DFS coloring pass finds a
// back-edge into a gray node.
type CyclicDependency struct {
	Cycle []string
}

func (e *CyclicDependency) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}
func (*CyclicDependency) resolveError() {}

// ManifestParseError wraps a failure reading a package's own manifest.
type ManifestParseError struct {
	Package string
	Reason  string
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("cannot parse manifest for %q: %s", e.Package, e.Reason)
}
func (*ManifestParseError) resolveError() {}

// InvariantViolation signals a graph invariant (I1-I3, or the
// per-node constraint-satisfaction check Validate also runs) failed
// outside the more specific error types above; this should only ever
// surface from Validate on a graph the resolver itself produced, i.e.
// it indicates a resolver bug rather than bad input.
type InvariantViolation struct {
	Reason string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("graph invariant violated: %s (%s)", e.Reason, e.Detail)
}
func (*InvariantViolation) resolveError() {}
