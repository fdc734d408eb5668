package resolver

import "context"

// Declared is one dependency entry as declared by a package's own
// manifest: a name and the constraint body the manifest places on it.
type Declared struct {
	Name       string
	Constraint string
}

// ManifestReader is the external collaborator (spec.md §6) the
// resolver consumes to learn a package's declared dependencies and the
// versions available for it. Implementations wrap JSON manifest I/O,
// a registry client, or a git remote; none of that is in scope here.
type ManifestReader interface {
	// ReadManifest returns the ordered list of dependencies a package
	// declares for itself.
	ReadManifest(ctx context.Context, pkg, version string) ([]Declared, error)
	// ListVersions returns every version known to exist for pkg.
	ListVersions(ctx context.Context, pkg string) ([]string, error)
}

// ProjectManifest is the root project's own declared dependencies: an
// ORDERED mapping package -> constraint, per spec.md §2.
type ProjectManifest struct {
	Dependencies []Declared
}
