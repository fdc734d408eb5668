// Package manifestreader provides a reference ManifestReader
// implementation used by tests and the CLI's default wiring. Real
// registry/manifest I/O is explicitly out of scope for the core
// (spec.md §1 Non-goals); this package exists only so the module is
// runnable end-to-end without a second project supplying one.
package manifestreader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/ccpm-project/ccpm/internal/resolver"
)

// manifestDoc is the on-disk shape of a package's own manifest file,
// named "ccpm-package.json" by convention.
type manifestDoc struct {
	Dependencies []resolver.Declared `json:"dependencies"`
}

// DirManifestReader reads manifests and version lists from a local
// directory tree laid out as:
//
//	root/<package>/<version>/ccpm-package.json
//
// Grounded on the teacher's deduce.go repo-root deduction, simplified
// from "deduce an import path's VCS remote" to "look up a package's
// declared dependencies on local disk", which is all the resolver
// needs from this collaborator.
type DirManifestReader struct {
	Root string
}

// ReadManifest implements resolver.ManifestReader.
func (r DirManifestReader) ReadManifest(ctx context.Context, pkg, version string) ([]resolver.Declared, error) {
	path := filepath.Join(r.Root, pkg, version, "ccpm-package.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &resolver.ManifestNotFound{Package: pkg}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "manifestreader: reading %q", path)
	}

	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &resolver.ManifestParseError{Package: pkg, Reason: err.Error()}
	}
	return doc.Dependencies, nil
}

// ListVersions implements resolver.ManifestReader by listing the
// package's version subdirectories.
func (r DirManifestReader) ListVersions(ctx context.Context, pkg string) ([]string, error) {
	dir := filepath.Join(r.Root, pkg)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, &resolver.ManifestNotFound{Package: pkg}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "manifestreader: listing %q", dir)
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}
