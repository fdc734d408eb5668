// Package resolver implements the Dependency Resolver (spec.md §4.1):
// a worklist-driven graph builder with pluggable conflict-resolution
// modes, grounded on the teacher's gps solver (solver.go, bridge.go,
// selection.go) and its worklist-of-unselected-projects design, cut
// down to the constraint-intersection-only scope this spec calls for
// (no backtracking SAT-style solver).
package resolver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccpm-project/ccpm/internal/clock"
)

// Mode selects how the resolver reacts to a version conflict, per
// spec.md §4.1 "Conflict resolution strategy".
type Mode int

const (
	// Automatic attempts the maximum version satisfying the
	// constraint intersection for every conflict; fails only if none
	// exists.
	Automatic Mode = iota
	// Interactive halts on the first conflict and returns a report;
	// the caller resolves it out-of-band and resumes via
	// ResolvePackage with the pinned/relaxed constraint.
	Interactive
	// Strict aborts resolution at the first conflict encountered.
	Strict
)

// retry budget for transient ManifestReader I/O errors, per spec.md
// §4.1 "Transient I/O errors ... retried once with exponential
// backoff".
const retryBackoff = 250 * time.Millisecond

// transientError lets a ManifestReader signal that an error is worth
// retrying (e.g. a network blip) as opposed to a structural failure
// (e.g. package genuinely doesn't exist).
type transientError interface {
	Transient() bool
}

// Resolver builds a DependencyGraph from a project manifest.
type Resolver struct {
	Reader ManifestReader
	Clock  clock.Clock
	Mode   Mode
	log    *logrus.Entry
}

// New returns a Resolver in Automatic mode by default.
func New(reader ManifestReader, clk clock.Clock, log *logrus.Entry) *Resolver {
	return &Resolver{Reader: reader, Clock: clk, Mode: Automatic, log: log}
}

type worklistItem struct {
	parent     string
	name       string
	constraint string
}

// ResolveProject reads the project's declared dependencies and
// resolves transitively, returning a validated graph or a structured
// ResolveError.
func (r *Resolver) ResolveProject(ctx context.Context, pm ProjectManifest) (*DependencyGraph, error) {
	g := NewGraph()
	var worklist []worklistItem
	for _, d := range pm.Dependencies {
		g.Roots[d.Name] = true
		// RootParent records the project's own constraint on this direct
		// dependency as an incoming constraint, so it participates in
		// conflict detection exactly like a transitive parent's
		// constraint does (spec.md §8 scenario S3).
		worklist = append(worklist, worklistItem{parent: RootParent, name: d.Name, constraint: d.Constraint})
	}

	if len(worklist) == 0 {
		// spec.md §8: "Resolver on empty manifest: returns an empty
		// graph, not an error."
		return g, nil
	}

	if err := r.expand(ctx, g, worklist); err != nil {
		return nil, err
	}

	if err := r.resolveConflicts(ctx, g); err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// ResolvePackage incrementally adds a single (name, constraint) edge
// into an existing working graph — e.g. resuming after an Interactive
// conflict was resolved by the caller. parent must be an existing or
// intended package name, or RootParent if constraint comes from the
// project's own manifest rather than another package's.
func (r *Resolver) ResolvePackage(ctx context.Context, g *DependencyGraph, parent, name, constraint string) error {
	return r.expand(ctx, g, []worklistItem{{parent: parent, name: name, constraint: constraint}})
}

// Validate re-checks invariants I1-I3 on an existing graph.
func (r *Resolver) Validate(g *DependencyGraph) error {
	return g.Validate()
}

func (r *Resolver) expand(ctx context.Context, g *DependencyGraph, worklist []worklistItem) error {
	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		c := Parse(item.constraint)

		if existing, ok := g.Nodes[item.name]; ok && existing.Status == Resolved {
			if c.Matches(existing.Version) {
				g.addEdge(item.parent, item.name, c)
				continue
			}
			// Conflict candidate: record the edge anyway so the
			// intersection computed in resolveConflicts sees every
			// contributing parent; resolution happens in a later pass
			// (or immediately, in Strict mode).
			g.addEdge(item.parent, item.name, c)
			if r.Mode == Strict {
				return r.conflictFor(g, item.name)
			}
			continue
		}

		versions, err := r.listVersionsWithRetry(ctx, item.name)
		if err != nil {
			return err
		}

		chosen, ok := GreatestSatisfying(c, versions)
		if !ok {
			return &VersionNotFound{Package: item.name, Constraint: item.constraint}
		}

		node := g.nodeOrNew(item.name)
		node.Version = chosen
		node.Status = Resolving
		g.addEdge(item.parent, item.name, c)

		declared, err := r.readManifestWithRetry(ctx, item.name, chosen)
		if err != nil {
			return err
		}
		node.Status = Resolved

		for _, d := range declared {
			worklist = append(worklist, worklistItem{parent: item.name, name: d.Name, constraint: d.Constraint})
		}
	}
	return nil
}

// resolveConflicts computes, for every node with more than one
// incoming constraint, the intersection of those constraints; if the
// chosen version fails it, this either repicks (Automatic) or reports
// the conflict (Interactive, and Strict for any conflict expansion did
// not already abort on).
func (r *Resolver) resolveConflicts(ctx context.Context, g *DependencyGraph) error {
	for name, n := range g.Nodes {
		if len(n.incoming) < 2 {
			continue
		}

		intersection := Any()
		for _, ic := range n.incoming {
			intersection = intersection.Intersect(ic.constraint)
		}
		if _, isNone := intersection.(noneConstraint); isNone {
			return r.conflictFor(g, name)
		}
		if intersection.Matches(n.Version) {
			continue
		}

		switch r.Mode {
		case Strict, Interactive:
			return r.conflictFor(g, name)
		case Automatic:
			versions, err := r.listVersionsWithRetry(ctx, name)
			if err != nil {
				return err
			}
			chosen, ok := GreatestSatisfying(intersection, versions)
			if !ok {
				return r.conflictFor(g, name)
			}
			n.Version = chosen
		}
	}
	return nil
}

func (r *Resolver) conflictFor(g *DependencyGraph, name string) *VersionConflict {
	n := g.Nodes[name]
	conflict := &VersionConflict{Package: name, ChosenVersion: n.Version}
	for _, ic := range n.incoming {
		conflict.RequiredBy = append(conflict.RequiredBy, RequiredBy{Parent: ic.parent, Constraint: ic.constraint.String()})
	}
	return conflict
}

func (r *Resolver) listVersionsWithRetry(ctx context.Context, name string) ([]string, error) {
	versions, err := r.Reader.ListVersions(ctx, name)
	if err == nil {
		return versions, nil
	}
	if !isTransient(err) {
		return nil, errors.Wrapf(err, "resolver: listing versions for %q", name)
	}
	if r.log != nil {
		r.log.WithField("package", name).Debug("retrying transient ListVersions failure")
	}
	if err := sleep(ctx, retryBackoff); err != nil {
		return nil, err
	}
	versions, err = r.Reader.ListVersions(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolver: listing versions for %q (after retry)", name)
	}
	return versions, nil
}

func (r *Resolver) readManifestWithRetry(ctx context.Context, name, version string) ([]Declared, error) {
	declared, err := r.Reader.ReadManifest(ctx, name, version)
	if err == nil {
		return declared, nil
	}
	if !isTransient(err) {
		return nil, &ManifestParseError{Package: name, Reason: err.Error()}
	}
	if r.log != nil {
		r.log.WithField("package", name).Debug("retrying transient ReadManifest failure")
	}
	if err := sleep(ctx, retryBackoff); err != nil {
		return nil, err
	}
	declared, err = r.Reader.ReadManifest(ctx, name, version)
	if err != nil {
		return nil, &ManifestParseError{Package: name, Reason: err.Error()}
	}
	return declared, nil
}

func isTransient(err error) bool {
	te, ok := errors.Cause(err).(transientError)
	return ok && te.Transient()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
