// Package fetcher holds the external Fetcher collaborator (spec.md
// §6) and one concrete, real implementation of it backed by
// Masterminds/vcs. The core only ever sees the Fetcher interface;
// GitFetcher exists so the module is runnable end-to-end without a
// second, separately-maintained transport project.
package fetcher

import "context"

// Fetcher populates target with a package's contents at version,
// given its source url. The core treats every implementation as
// opaque; this interface is the entire contract.
type Fetcher interface {
	Fetch(ctx context.Context, url, version, targetPath string) error
}

// Error classifies a Fetch failure per spec.md §7's Fetch taxonomy.
type Error struct {
	Kind    Kind
	Message string
}

// Kind enumerates the Fetch error taxonomy.
type Kind int

const (
	Unreachable Kind = iota
	AuthRequired
	Corrupted
	Timeout
)

func (e *Error) Error() string { return e.Message }

// Transient reports whether this Fetch error is worth retrying, per
// spec.md §7: "Unreachable, AuthRequired, Corrupted, Timeout — transient
// subset retried with exponential backoff." AuthRequired and Corrupted
// are not transient: retrying them without operator intervention can't
// succeed.
func (e *Error) Transient() bool {
	return e.Kind == Unreachable || e.Kind == Timeout
}
